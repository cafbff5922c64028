// Package rules evaluates the platform conditions guarding library and
// argument entries. Evaluation is a pure fold over the rule list: the last
// matching rule's action wins.
package rules

import (
	"github.com/arthur-debert/lodestone/pkg/types"
)

// Applies evaluates an ordered rule list against a platform. An empty list
// allows unconditionally. Otherwise the running decision starts at false and
// each matching rule overwrites it with its action; the final decision is
// returned. Unknown OS or arch values fail to match rather than erroring.
func Applies(rules []types.Rule, p types.Platform) bool {
	if len(rules) == 0 {
		return true
	}
	allowed := false
	for _, r := range rules {
		if r.Matches(p) {
			allowed = r.Action == types.ActionAllow
		}
	}
	return allowed
}

// FilterArguments expands the argument tokens whose rules apply to the
// platform, preserving order.
func FilterArguments(args []types.Argument, p types.Platform) []string {
	var out []string
	for _, a := range args {
		if Applies(a.Rules, p) {
			out = append(out, a.Values...)
		}
	}
	return out
}
