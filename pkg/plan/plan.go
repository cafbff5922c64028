// Package plan turns a merged version descriptor plus asset index into the
// flat list of artifacts that must exist on disk, with destinations, sizes
// and checksums. Artifacts already present and verified are marked
// pre-satisfied so a fully-populated directory plans to zero work.
package plan

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/lodestone/pkg/checksum"
	"github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/layout"
	"github.com/arthur-debert/lodestone/pkg/logging"
	"github.com/arthur-debert/lodestone/pkg/maven"
	"github.com/arthur-debert/lodestone/pkg/rules"
	"github.com/arthur-debert/lodestone/pkg/types"
)

// DefaultAssetBase is the content-addressed asset store used when the
// options don't override it.
const DefaultAssetBase = "https://resources.download.minecraft.net"

// Options tunes plan construction.
type Options struct {
	// Repository is the Maven repository base used for libraries that
	// carry no direct download URL (the library's own URL field still
	// takes precedence).
	Repository string

	// AssetBase is the base URL of the content-addressed asset store.
	AssetBase string
}

// Plan is the full materialization plan for one version in one layout.
type Plan struct {
	// ID identifies the plan for queue persistence: same version against
	// the same layout yields the same ID across runs.
	ID      string
	Version string

	// LayoutFingerprint records the layout the plan was built against; a
	// persisted queue record from a different layout must not be resumed.
	LayoutFingerprint string

	// Tasks is the pending work list. Order carries no meaning; the
	// engine parallelizes freely.
	Tasks []types.ArtifactTask

	// Satisfied are tasks whose destination already held the right bytes.
	// They count toward progress totals but perform no network activity.
	Satisfied []types.ArtifactTask
}

// BytesTotal sums expected sizes over all tasks, satisfied included.
func (p *Plan) BytesTotal() int64 {
	var n int64
	for _, t := range p.Tasks {
		n += t.Size
	}
	return n + p.BytesSatisfied()
}

// BytesSatisfied sums expected sizes over pre-satisfied tasks.
func (p *Plan) BytesSatisfied() int64 {
	var n int64
	for _, t := range p.Satisfied {
		n += t.Size
	}
	return n
}

// Build assembles the artifact list for a merged descriptor. The asset index
// may be nil when the descriptor references none. Planning failures are
// fatal: an error here means nothing should download.
func Build(desc *types.VersionDescriptor, index *types.AssetIndex, platform types.Platform, l *layout.Layout, opts Options) (*Plan, error) {
	logger := logging.GetLogger("plan")
	if opts.AssetBase == "" {
		opts.AssetBase = DefaultAssetBase
	}

	p := &Plan{
		Version:           desc.ID,
		LayoutFingerprint: l.Fingerprint(),
	}
	p.ID = IDFor(desc.ID, l.Fingerprint())

	var all []types.ArtifactTask

	if client := desc.ClientDownload(); client != nil {
		all = append(all, types.ArtifactTask{
			ID:          "client/" + desc.ID,
			Kind:        types.ArtifactClient,
			URL:         client.URL,
			Destination: l.ClientJar(desc.ID),
			Size:        client.Size,
			Checksum:    sha1Checksum(client.SHA1),
		})
	} else {
		logger.Debug().Str("version", desc.ID).Msg("Descriptor has no client download")
	}

	for _, lib := range desc.Libraries {
		tasks, err := libraryTasks(lib, desc.ID, platform, l, opts, logger)
		if err != nil {
			return nil, err
		}
		all = append(all, tasks...)
	}

	if index != nil {
		assets, err := assetTasks(index, l, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, assets...)
	}

	for _, task := range all {
		if checksum.FileSatisfies(task.Destination, task.Size, task.Checksum) {
			p.Satisfied = append(p.Satisfied, task)
			continue
		}
		p.Tasks = append(p.Tasks, task)
	}

	logger.Info().
		Str("version", desc.ID).
		Int("pending", len(p.Tasks)).
		Int("satisfied", len(p.Satisfied)).
		Int64("bytes", p.BytesTotal()).
		Msg("Plan built")
	return p, nil
}

// libraryTasks emits the primary artifact task plus a native-classifier task
// for the current platform, after rule filtering.
func libraryTasks(lib types.Library, versionID string, platform types.Platform, l *layout.Layout, opts Options, logger zerolog.Logger) ([]types.ArtifactTask, error) {
	if !rules.Applies(lib.Rules, platform) {
		logger.Trace().Str("library", lib.Name).Msg("Excluded by rules")
		return nil, nil
	}

	var tasks []types.ArtifactTask

	primary, err := resolveArtifact(lib, "", opts)
	if err != nil {
		return nil, err
	}
	if primary != nil {
		tasks = append(tasks, types.ArtifactTask{
			ID:          primary.Path,
			Kind:        types.ArtifactLibrary,
			URL:         primary.URL,
			Destination: l.LibraryPath(primary.Path),
			Size:        primary.Size,
			Checksum:    sha1Checksum(primary.SHA1),
		})
	}

	if classifier := lib.NativeClassifier(platform); classifier != "" {
		native, err := resolveArtifact(lib, classifier, opts)
		if err != nil {
			return nil, err
		}
		if native != nil {
			tasks = append(tasks, types.ArtifactTask{
				ID:          native.Path,
				Kind:        types.ArtifactNative,
				URL:         native.URL,
				Destination: l.LibraryPath(native.Path),
				Size:        native.Size,
				Checksum:    sha1Checksum(native.SHA1),
				ExtractTo:   l.NativesDir(versionID),
				Extract:     lib.Extract,
			})
		}
	}

	return tasks, nil
}

// resolveArtifact produces the download info for a library's primary
// artifact (classifier == "") or one native classifier: the direct download
// descriptor when present, otherwise a Maven-path URL from the coordinate.
// A nil result without error means the classifier has no artifact at all,
// which is not a planning failure.
func resolveArtifact(lib types.Library, classifier string, opts Options) (*types.DownloadInfo, error) {
	var direct *types.DownloadInfo
	if lib.Downloads != nil {
		if classifier == "" {
			direct = lib.Downloads.Artifact
		} else if lib.Downloads.Classifiers != nil {
			direct = lib.Downloads.Classifiers[classifier]
		}
	}
	if direct != nil && direct.URL != "" {
		info := *direct
		if info.Path == "" {
			coord, err := maven.Parse(lib.Name)
			if err == nil {
				if classifier != "" {
					coord = coord.WithClassifier(classifier)
				}
				info.Path = coord.Path()
			} else {
				// Last resort: derive a path from the URL tail.
				info.Path = strings.TrimPrefix(info.URL[strings.LastIndex(info.URL, "/")+1:], "/")
			}
		}
		return &info, nil
	}

	// The wire format lists a natives classifier even when some platforms
	// have no artifact for it; only fail when the primary is unresolvable.
	if direct == nil && classifier != "" && lib.Downloads != nil {
		return nil, nil
	}

	coord, err := maven.Parse(lib.Name)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrUnresolvableLibrary,
			"library %q has no download descriptor and no resolvable coordinate", lib.Name)
	}
	if classifier != "" {
		coord = coord.WithClassifier(classifier)
	}

	repo := lib.URL
	if repo == "" {
		repo = opts.Repository
	}
	if repo == "" {
		return nil, errors.Newf(errors.ErrUnresolvableLibrary,
			"library %q needs a Maven repository but none is configured", lib.Name)
	}

	return &types.DownloadInfo{
		Path: coord.Path(),
		URL:  coord.URL(repo),
	}, nil
}

// assetTasks emits one content-addressed task per distinct hash. Two logical
// asset paths sharing a hash are the same physical file. The index is remote
// input: an entry whose hash cannot address an object fails planning.
func assetTasks(index *types.AssetIndex, l *layout.Layout, opts Options) ([]types.ArtifactTask, error) {
	base := strings.TrimSuffix(opts.AssetBase, "/")

	byHash := make(map[string]types.AssetObject, len(index.Objects))
	for path, obj := range index.Objects {
		if len(obj.Hash) < 2 {
			return nil, errors.Newf(errors.ErrDescriptorParse,
				"asset index entry %q has malformed hash %q", path, obj.Hash)
		}
		byHash[obj.Hash] = obj
	}

	hashes := make([]string, 0, len(byHash))
	for h := range byHash {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	tasks := make([]types.ArtifactTask, 0, len(hashes))
	for _, h := range hashes {
		obj := byHash[h]
		tasks = append(tasks, types.ArtifactTask{
			ID:          h,
			Kind:        types.ArtifactAsset,
			URL:         base + "/" + h[:2] + "/" + h,
			Destination: l.AssetObjectPath(h),
			Size:        obj.Size,
			Checksum:    types.Checksum{Kind: types.ChecksumSHA1, Value: h},
		})
	}
	return tasks, nil
}

func sha1Checksum(value string) types.Checksum {
	if value == "" {
		return types.Checksum{}
	}
	return types.Checksum{Kind: types.ChecksumSHA1, Value: value}
}

// IDFor derives the stable plan ID for a version in a layout. Install uses
// it to locate a persisted queue record before resolving anything.
func IDFor(version, layoutFingerprint string) string {
	h := sha1.Sum([]byte(version + "\x00" + layoutFingerprint))
	return hex.EncodeToString(h[:])
}
