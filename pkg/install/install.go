// Package install wires the full provisioning pipeline together: resolve a
// version descriptor, fetch its asset index, derive the artifact plan, and
// run the download engine over whatever is not already on disk.
package install

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/lodestone/pkg/checksum"
	"github.com/arthur-debert/lodestone/pkg/config"
	"github.com/arthur-debert/lodestone/pkg/download"
	"github.com/arthur-debert/lodestone/pkg/layout"
	"github.com/arthur-debert/lodestone/pkg/logging"
	"github.com/arthur-debert/lodestone/pkg/manifest"
	"github.com/arthur-debert/lodestone/pkg/maven"
	"github.com/arthur-debert/lodestone/pkg/plan"
	"github.com/arthur-debert/lodestone/pkg/progress"
	"github.com/arthur-debert/lodestone/pkg/queue"
	"github.com/arthur-debert/lodestone/pkg/types"
)

// Installer holds the composed pipeline for one instance layout.
type Installer struct {
	cfg      *config.Config
	layout   *layout.Layout
	client   *http.Client
	source   *manifest.HTTPSource
	resolver *manifest.Resolver
	store    *queue.Store
	engine   *download.Engine
	logger   zerolog.Logger
}

// New composes an installer for the instance rooted at root. An empty root
// falls back to the configured layout root.
func New(cfg *config.Config, root string) (*Installer, error) {
	if root == "" {
		root = cfg.Layout.Root
	}
	lay, err := layout.New(root, cfg.LayoutMode())
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cfg.Network.Timeout}
	source := manifest.NewHTTPSource(cfg.Repositories.Manifest, lay.CacheDir(), client)
	store := queue.NewStore(lay.StateDir())
	engine := download.New(cfg.EngineConfig(), nil, progress.NewReporter(0), store)

	return &Installer{
		cfg:      cfg,
		layout:   lay,
		client:   client,
		source:   source,
		resolver: manifest.NewResolver(source),
		store:    store,
		engine:   engine,
		logger:   logging.GetLogger("install"),
	}, nil
}

// Layout exposes the instance layout.
func (i *Installer) Layout() *layout.Layout { return i.layout }

// Reporter exposes the engine's progress reporter for subscription.
func (i *Installer) Reporter() *progress.Reporter { return i.engine.Reporter() }

// Resolve returns the fully merged descriptor for a version.
func (i *Installer) Resolve(ctx context.Context, version string) (*types.VersionDescriptor, error) {
	return i.resolver.Resolve(ctx, version)
}

// BuildPlan resolves a version and derives its artifact plan against the
// current platform and this installer's layout.
func (i *Installer) BuildPlan(ctx context.Context, version string) (*plan.Plan, error) {
	desc, err := i.resolver.Resolve(ctx, version)
	if err != nil {
		return nil, err
	}

	if err := i.pinLibraryVersions(ctx, desc); err != nil {
		return nil, err
	}

	var index *types.AssetIndex
	if desc.AssetIndex != nil {
		index, err = i.source.FetchAssetIndex(ctx, desc.AssetIndex, i.layout.AssetIndexPath(desc.AssetIndex.ID))
		if err != nil {
			return nil, err
		}
	}

	return plan.Build(desc, index, types.CurrentPlatform(), i.layout, plan.Options{
		Repository: i.cfg.Repositories.Maven,
		AssetBase:  i.cfg.Repositories.Assets,
	})
}

// pinLibraryVersions rewrites "latest" and "release" placeholder versions
// in Maven-coordinate libraries to concrete ones using repository metadata.
// Libraries with direct download descriptors never need pinning.
func (i *Installer) pinLibraryVersions(ctx context.Context, desc *types.VersionDescriptor) error {
	for idx := range desc.Libraries {
		lib := &desc.Libraries[idx]
		if lib.Downloads != nil && lib.Downloads.Artifact != nil {
			continue
		}
		coord, err := maven.Parse(lib.Name)
		if err != nil {
			// The planner reports malformed names with full context.
			continue
		}
		if coord.Version != "latest" && coord.Version != "release" {
			continue
		}

		base := lib.URL
		if base == "" {
			base = i.cfg.Repositories.Maven
		}
		pinned, err := maven.NewRepository(strings.TrimSuffix(base, "/"), i.client).Pin(ctx, coord)
		if err != nil {
			return err
		}
		i.logger.Debug().
			Str("library", lib.Name).
			Str("pinned", pinned.String()).
			Msg("Pinned placeholder library version")
		lib.Name = pinned.String()
	}
	return nil
}

// resumePlan rebuilds the pending work of an earlier unfinished run from
// its queue record, skipping resolution and planning entirely. Tasks whose
// destination became valid since the record was written move to Satisfied.
// Returns nil when no usable record exists.
func (i *Installer) resumePlan(version string) *plan.Plan {
	fingerprint := i.layout.Fingerprint()
	id := plan.IDFor(version, fingerprint)

	// Validate guards against a record whose content does not match the
	// file it was loaded under; a mismatch clears it.
	record := i.store.Validate(i.store.Load(id), version, fingerprint)
	if record == nil || len(record.Tasks) == 0 {
		return nil
	}

	p := &plan.Plan{ID: id, Version: version, LayoutFingerprint: fingerprint}
	for _, task := range record.ArtifactTasks() {
		if checksum.FileSatisfies(task.Destination, task.Size, task.Checksum) {
			p.Satisfied = append(p.Satisfied, task)
			continue
		}
		p.Tasks = append(p.Tasks, task)
	}
	return p
}

// Install provisions a version: everything missing or corrupt is fetched,
// verified, and moved into place. An unfinished queue record from a previous
// run resumes as-is, without re-resolving the version. Returns the engine's
// per-task report; a partial failure is reported, not turned into an error.
func (i *Installer) Install(ctx context.Context, version string) (*download.Report, error) {
	p := i.resumePlan(version)
	if p != nil {
		i.logger.Info().
			Str("version", version).
			Str("plan", p.ID).
			Int("pending", len(p.Tasks)).
			Msg("Resuming unfinished plan from queue record")
	} else {
		var err error
		if p, err = i.BuildPlan(ctx, version); err != nil {
			return nil, err
		}
	}

	i.logger.Info().
		Str("version", version).
		Int("pending", len(p.Tasks)).
		Int("satisfied", len(p.Satisfied)).
		Int64("bytes", p.BytesTotal()-p.BytesSatisfied()).
		Msg("Starting install")

	return i.engine.Run(ctx, p)
}

// Verify checks a version's artifacts against their sizes and checksums
// without downloading anything. The returned plan's Tasks are the artifacts
// that would need fetching; Satisfied are the ones already valid on disk.
func (i *Installer) Verify(ctx context.Context, version string) (*plan.Plan, error) {
	return i.BuildPlan(ctx, version)
}
