package types

import "strings"

// Library is one classpath or native dependency of a version. Either a
// direct download descriptor is present under Downloads, or the Maven
// coordinate in Name must be resolvable against a repository.
type Library struct {
	// Name is the Maven coordinate: group:artifact:version[:classifier].
	Name string `json:"name"`

	Downloads *LibraryDownloads `json:"downloads,omitempty"`

	// URL overrides the Maven repository base for coordinate resolution.
	URL string `json:"url,omitempty"`

	// Natives maps a descriptor OS name to the classifier carrying that
	// platform's native code. The classifier may contain an ${arch}
	// placeholder.
	Natives map[string]string `json:"natives,omitempty"`

	Extract *ExtractRules `json:"extract,omitempty"`
	Rules   []Rule        `json:"rules,omitempty"`
}

// NativeClassifier returns the classifier holding native code for the given
// platform, with the ${arch} placeholder substituted. Empty when the library
// has no natives for that OS.
func (l Library) NativeClassifier(p Platform) string {
	c, ok := l.Natives[p.OS]
	if !ok {
		return ""
	}
	return strings.ReplaceAll(c, "${arch}", p.Bits())
}

// LibraryDownloads carries the direct download descriptors for a library's
// primary artifact and its per-classifier native variants.
type LibraryDownloads struct {
	Artifact    *DownloadInfo            `json:"artifact,omitempty"`
	Classifiers map[string]*DownloadInfo `json:"classifiers,omitempty"`
}

// ExtractRules restricts which entries of a natives archive are unpacked.
type ExtractRules struct {
	Exclude []string `json:"exclude,omitempty"`
}

// Excluded reports whether an archive entry name matches the exclusion list.
// Entries are matched by prefix, the convention used by natives archives
// ("META-INF/" excludes the whole directory).
func (e *ExtractRules) Excluded(name string) bool {
	if e == nil {
		return false
	}
	for _, prefix := range e.Exclude {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// AssetIndex maps logical asset paths to content-addressed objects.
type AssetIndex struct {
	Objects map[string]AssetObject `json:"objects"`
}

// AssetObject is one content-addressed asset: its on-disk location is
// derived from Hash, and a hash match is the integrity check.
type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}
