package types

import "encoding/json"

// VersionDescriptor is one version's launch requirements as published by the
// version manifest service. The JSON tags match the wire format; descriptors
// are immutable once fetched.
type VersionDescriptor struct {
	ID           string `json:"id"`
	InheritsFrom string `json:"inheritsFrom,omitempty"`
	Type         string `json:"type,omitempty"`
	ReleaseTime  string `json:"releaseTime,omitempty"`

	MainClass   string       `json:"mainClass,omitempty"`
	JavaVersion *JavaVersion `json:"javaVersion,omitempty"`

	Arguments Arguments `json:"arguments,omitempty"`
	Libraries []Library `json:"libraries,omitempty"`

	AssetIndex *AssetIndexRef           `json:"assetIndex,omitempty"`
	Downloads  map[string]*DownloadInfo `json:"downloads,omitempty"`
}

// ClientDownload returns the client binary's download info, or nil when the
// descriptor does not carry one (e.g. a loader descriptor that inherits it).
func (d *VersionDescriptor) ClientDownload() *DownloadInfo {
	if d.Downloads == nil {
		return nil
	}
	return d.Downloads["client"]
}

// JavaVersion names the runtime major version the version requires.
type JavaVersion struct {
	Component    string `json:"component,omitempty"`
	MajorVersion int    `json:"majorVersion"`
}

// Arguments holds the two launch argument groups. Each token may be
// platform-conditioned.
type Arguments struct {
	Game []Argument `json:"game,omitempty"`
	JVM  []Argument `json:"jvm,omitempty"`
}

// Argument is a single launch token or a rule-guarded group of tokens. The
// wire format encodes unconditional tokens as bare strings and conditioned
// ones as objects with "rules" and "value".
type Argument struct {
	Rules  []Rule
	Values []string
}

type conditionalArgument struct {
	Rules []Rule          `json:"rules,omitempty"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON accepts both the bare-string and the conditioned-object
// encodings.
func (a *Argument) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Rules = nil
		a.Values = []string{s}
		return nil
	}

	var cond conditionalArgument
	if err := json.Unmarshal(data, &cond); err != nil {
		return err
	}
	a.Rules = cond.Rules

	var one string
	if err := json.Unmarshal(cond.Value, &one); err == nil {
		a.Values = []string{one}
		return nil
	}
	return json.Unmarshal(cond.Value, &a.Values)
}

// MarshalJSON round-trips the wire encoding: unconditional single tokens as
// bare strings, everything else as the object form.
func (a Argument) MarshalJSON() ([]byte, error) {
	if len(a.Rules) == 0 && len(a.Values) == 1 {
		return json.Marshal(a.Values[0])
	}
	value, err := json.Marshal(a.Values)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conditionalArgument{Rules: a.Rules, Value: value})
}

// DownloadInfo is a directly-downloadable artifact reference.
type DownloadInfo struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// AssetIndexRef points at the version's asset index file.
type AssetIndexRef struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
}
