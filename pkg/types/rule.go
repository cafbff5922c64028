package types

// RuleAction is the outcome a matching rule applies.
type RuleAction string

const (
	ActionAllow    RuleAction = "allow"
	ActionDisallow RuleAction = "disallow"
)

// Rule is a platform condition guarding a library or argument entry. A rule
// with no conditions matches every platform.
type Rule struct {
	Action   RuleAction      `json:"action"`
	OS       *OSCondition    `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// OSCondition matches against the platform's OS name and architecture.
// Empty fields are wildcards.
type OSCondition struct {
	Name string `json:"name,omitempty"`
	Arch string `json:"arch,omitempty"`
}

// Matches reports whether every condition on the rule holds for the
// platform. Unknown values simply fail to match; this never errors.
func (r Rule) Matches(p Platform) bool {
	if r.OS != nil {
		if r.OS.Name != "" && r.OS.Name != p.OS {
			return false
		}
		if r.OS.Arch != "" && r.OS.Arch != p.Arch {
			return false
		}
	}
	for name, want := range r.Features {
		if p.Feature(name) != want {
			return false
		}
	}
	return true
}
