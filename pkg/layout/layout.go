// Package layout provides centralized path handling for lodestone. It maps
// logical artifact kinds (client jar, library, native, asset object) to
// concrete filesystem paths, with XDG Base Directory compliance for the
// shared directories.
package layout

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/arthur-debert/lodestone/pkg/errors"
)

// Environment variable names
const (
	// EnvDataDir overrides the shared artifact directory
	EnvDataDir = "LODESTONE_DATA_DIR"

	// EnvStateDir overrides the state directory holding queue records
	EnvStateDir = "LODESTONE_STATE_DIR"

	// EnvCacheDir overrides the descriptor cache directory
	EnvCacheDir = "LODESTONE_CACHE_DIR"
)

// AppDirName is the directory name used under the XDG base directories.
const AppDirName = "lodestone"

// Mode selects where shared artifacts live.
type Mode string

const (
	// ModeShared points libraries and asset objects at the XDG data
	// directory so every instance reuses the same physical files.
	ModeShared Mode = "shared"

	// ModeIsolated keeps everything under the instance root.
	ModeIsolated Mode = "isolated"
)

// Layout maps artifact kinds to filesystem destinations for one instance.
type Layout struct {
	root   string
	shared string
	state  string
	cache  string
	mode   Mode
}

// New builds a layout rooted at the given instance directory. In shared
// mode, libraries and assets resolve under the XDG data directory (or
// LODESTONE_DATA_DIR); in isolated mode everything stays under root.
func New(root string, mode Mode) (*Layout, error) {
	if root == "" {
		return nil, errors.New(errors.ErrInvalidInput, "layout root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "cannot resolve layout root %s", root)
	}

	l := &Layout{root: abs, mode: mode}

	switch mode {
	case ModeShared:
		l.shared = envOr(EnvDataDir, filepath.Join(xdg.DataHome, AppDirName))
	case ModeIsolated:
		l.shared = abs
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown layout mode %q", mode)
	}

	l.state = envOr(EnvStateDir, filepath.Join(xdg.StateHome, AppDirName))
	l.cache = envOr(EnvCacheDir, filepath.Join(xdg.CacheHome, AppDirName))
	return l, nil
}

func envOr(env, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

// Root returns the instance root directory.
func (l *Layout) Root() string { return l.root }

// Mode returns the layout mode.
func (l *Layout) Mode() Mode { return l.mode }

// VersionDir is the directory for one version's files.
func (l *Layout) VersionDir(id string) string {
	return filepath.Join(l.root, "versions", id)
}

// ClientJar is the destination of a version's client binary.
func (l *Layout) ClientJar(id string) string {
	return filepath.Join(l.VersionDir(id), id+".jar")
}

// DescriptorPath is where a version's raw descriptor JSON is kept.
func (l *Layout) DescriptorPath(id string) string {
	return filepath.Join(l.VersionDir(id), id+".json")
}

// NativesDir is where a version's native libraries are extracted.
func (l *Layout) NativesDir(id string) string {
	return filepath.Join(l.VersionDir(id), "natives")
}

// LibraryPath maps a repository-relative Maven path into the library store.
func (l *Layout) LibraryPath(mavenPath string) string {
	return filepath.Join(l.shared, "libraries", filepath.FromSlash(mavenPath))
}

// AssetIndexPath is where an asset index file lands.
func (l *Layout) AssetIndexPath(id string) string {
	return filepath.Join(l.shared, "assets", "indexes", id+".json")
}

// AssetObjectPath derives the content-addressed location of an asset from
// its hash: objects/<first two hex chars>/<hash>. A hash too short for a
// prefix directory is used whole; the planner rejects such entries before
// they reach here.
func (l *Layout) AssetObjectPath(hash string) string {
	prefix := hash
	if len(hash) >= 2 {
		prefix = hash[:2]
	}
	return filepath.Join(l.shared, "assets", "objects", prefix, hash)
}

// StateDir holds durable queue records.
func (l *Layout) StateDir() string { return l.state }

// CacheDir holds cached raw descriptors and manifest responses.
func (l *Layout) CacheDir() string { return l.cache }

// Fingerprint identifies this layout for queue-record matching: a persisted
// plan is only resumable against the layout that produced it.
func (l *Layout) Fingerprint() string {
	h := sha1.Sum([]byte(string(l.mode) + "\x00" + l.root + "\x00" + l.shared))
	return hex.EncodeToString(h[:])
}

// EnsureParent creates the parent directory of a destination path.
func EnsureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create directory for %s", path)
	}
	return nil
}
