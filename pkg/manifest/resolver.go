package manifest

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/logging"
	"github.com/arthur-debert/lodestone/pkg/maven"
	"github.com/arthur-debert/lodestone/pkg/types"
)

// Resolver turns a version identifier into a fully-merged descriptor by
// walking its inheritsFrom chain. Merged results are cached for the life of
// the resolver; descriptors are immutable once published, so the cache is
// never invalidated except by dropping the resolver.
type Resolver struct {
	source Source
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string]*types.VersionDescriptor
}

// NewResolver creates a resolver over the given descriptor source.
func NewResolver(source Source) *Resolver {
	return &Resolver{
		source: source,
		logger: logging.GetLogger("manifest.resolver"),
		cache:  make(map[string]*types.VersionDescriptor),
	}
}

// Resolve loads the descriptor for id and merges its inheritance chain into
// a single descriptor. Cycles fail with CYCLIC_INHERITANCE; a missing
// ancestor fails with UNRESOLVED_PARENT naming the missing id.
func (r *Resolver) Resolve(ctx context.Context, id string) (*types.VersionDescriptor, error) {
	r.mu.Lock()
	if cached, ok := r.cache[id]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	merged, err := r.resolve(ctx, id, nil)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = merged
	r.mu.Unlock()
	return merged, nil
}

// resolve walks one step of the chain. The chain slice doubles as the
// visited set; inheritance chains are short so a linear scan is fine.
func (r *Resolver) resolve(ctx context.Context, id string, chain []string) (*types.VersionDescriptor, error) {
	for _, seen := range chain {
		if seen == id {
			return nil, errors.Newf(errors.ErrCyclicInheritance,
				"inheritance cycle: %s", strings.Join(append(chain, id), " -> "))
		}
	}
	chain = append(chain, id)

	desc, err := r.source.Descriptor(ctx, id)
	if err != nil {
		if len(chain) > 1 && errors.IsErrorCode(err, errors.ErrNotFound) {
			return nil, errors.Wrapf(err, errors.ErrUnresolvedParent,
				"parent version %q of %q not found", id, chain[len(chain)-2])
		}
		return nil, err
	}

	if desc.InheritsFrom == "" {
		return desc, nil
	}

	r.logger.Debug().
		Str("version", id).
		Str("parent", desc.InheritsFrom).
		Msg("Resolving parent descriptor")

	parent, err := r.resolve(ctx, desc.InheritsFrom, chain)
	if err != nil {
		return nil, err
	}
	return merge(parent, desc), nil
}

// merge combines a fully-resolved parent with its child. The child is the
// nearer descriptor, so its values win wherever the format allows override.
func merge(parent, child *types.VersionDescriptor) *types.VersionDescriptor {
	out := &types.VersionDescriptor{
		// Identity fields always come from the requested descriptor; the
		// chain is resolved, so inheritsFrom is deliberately dropped.
		ID:          child.ID,
		Type:        child.Type,
		ReleaseTime: child.ReleaseTime,

		MainClass:   child.MainClass,
		JavaVersion: child.JavaVersion,
		AssetIndex:  child.AssetIndex,
	}

	if out.MainClass == "" {
		out.MainClass = parent.MainClass
	}
	if out.JavaVersion == nil {
		out.JavaVersion = parent.JavaVersion
	}
	if out.AssetIndex == nil {
		out.AssetIndex = parent.AssetIndex
	}

	out.Arguments = types.Arguments{
		Game: concatArguments(parent.Arguments.Game, child.Arguments.Game),
		JVM:  concatArguments(parent.Arguments.JVM, child.Arguments.JVM),
	}

	out.Libraries = mergeLibraries(parent.Libraries, child.Libraries)

	if len(parent.Downloads) > 0 || len(child.Downloads) > 0 {
		out.Downloads = make(map[string]*types.DownloadInfo, len(parent.Downloads)+len(child.Downloads))
		for k, v := range parent.Downloads {
			out.Downloads[k] = v
		}
		for k, v := range child.Downloads {
			out.Downloads[k] = v
		}
	}

	return out
}

func concatArguments(parent, child []types.Argument) []types.Argument {
	if len(parent) == 0 && len(child) == 0 {
		return nil
	}
	out := make([]types.Argument, 0, len(parent)+len(child))
	out = append(out, parent...)
	out = append(out, child...)
	return out
}

// mergeLibraries concatenates parent then child and deduplicates by
// group:artifact:classifier, keeping the last occurrence. The surviving
// entry stays at the first occurrence's position so classpath order is
// stable; only its content is replaced. Classifier is part of the key so
// native variants never collapse into the plain artifact.
func mergeLibraries(parent, child []types.Library) []types.Library {
	combined := make([]types.Library, 0, len(parent)+len(child))
	combined = append(combined, parent...)
	combined = append(combined, child...)

	out := make([]types.Library, 0, len(combined))
	index := make(map[string]int, len(combined))
	for _, lib := range combined {
		key := libraryKey(lib)
		if at, ok := index[key]; ok {
			out[at] = lib
			continue
		}
		index[key] = len(out)
		out = append(out, lib)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func libraryKey(lib types.Library) string {
	c, err := maven.Parse(lib.Name)
	if err != nil {
		// Unparseable names dedupe only against themselves.
		return lib.Name
	}
	return c.DedupKey()
}
