// Package config loads lodestone's layered configuration: embedded
// defaults, then the user's config file, then LODESTONE_* environment
// variables, each layer overriding the one before it.
package config

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	ptoml "github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/lodestone/pkg/download"
	lerrors "github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/layout"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// EnvConfigFile overrides the user config file location.
const EnvConfigFile = "LODESTONE_CONFIG"

// Config is the fully merged configuration tree.
type Config struct {
	Download     DownloadConfig     `koanf:"download"`
	Network      NetworkConfig      `koanf:"network"`
	Repositories RepositoriesConfig `koanf:"repositories"`
	Layout       LayoutConfig       `koanf:"layout"`
}

// DownloadConfig tunes the download engine.
type DownloadConfig struct {
	Concurrency      int           `koanf:"concurrency"`
	SegmentThreshold int64         `koanf:"segment_threshold"`
	Segments         int           `koanf:"segments"`
	MaxRetries       int           `koanf:"max_retries"`
	RetryBaseDelay   time.Duration `koanf:"retry_base_delay"`
	RetryMaxDelay    time.Duration `koanf:"retry_max_delay"`
}

// NetworkConfig covers everything request-shaped.
type NetworkConfig struct {
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"user_agent"`
}

// RepositoriesConfig names the remote endpoints artifacts come from.
type RepositoriesConfig struct {
	Manifest string `koanf:"manifest"`
	Maven    string `koanf:"maven"`
	Assets   string `koanf:"assets"`
}

// LayoutConfig selects where artifacts live on disk.
type LayoutConfig struct {
	Mode string `koanf:"mode"`
	Root string `koanf:"root"`
}

// EngineConfig maps the download section onto the engine's knobs.
func (c *Config) EngineConfig() download.Config {
	return download.Config{
		Concurrency:      c.Download.Concurrency,
		SegmentThreshold: c.Download.SegmentThreshold,
		Segments:         c.Download.Segments,
		MaxRetries:       c.Download.MaxRetries,
		RetryBaseDelay:   c.Download.RetryBaseDelay,
		RetryMaxDelay:    c.Download.RetryMaxDelay,
		RequestTimeout:   c.Network.Timeout,
		UserAgent:        c.Network.UserAgent,
	}
}

// LayoutMode converts the configured mode string, defaulting to shared.
func (c *Config) LayoutMode() layout.Mode {
	switch c.Layout.Mode {
	case string(layout.ModeIsolated):
		return layout.ModeIsolated
	default:
		return layout.ModeShared
	}
}

// Dump renders the effective configuration as TOML, in the same shape the
// config file uses. Durations are written in their human form.
func (c *Config) Dump() ([]byte, error) {
	type downloadSection struct {
		Concurrency      int    `toml:"concurrency"`
		SegmentThreshold int64  `toml:"segment_threshold"`
		Segments         int    `toml:"segments"`
		MaxRetries       int    `toml:"max_retries"`
		RetryBaseDelay   string `toml:"retry_base_delay"`
		RetryMaxDelay    string `toml:"retry_max_delay"`
	}
	type networkSection struct {
		Timeout   string `toml:"timeout"`
		UserAgent string `toml:"user_agent"`
	}
	type layoutSection struct {
		Mode string `toml:"mode"`
		Root string `toml:"root,omitempty"`
	}
	type repositoriesSection struct {
		Manifest string `toml:"manifest"`
		Maven    string `toml:"maven"`
		Assets   string `toml:"assets"`
	}
	out, err := ptoml.Marshal(struct {
		Download     downloadSection     `toml:"download"`
		Network      networkSection      `toml:"network"`
		Repositories repositoriesSection `toml:"repositories"`
		Layout       layoutSection       `toml:"layout"`
	}{
		Download: downloadSection{
			Concurrency:      c.Download.Concurrency,
			SegmentThreshold: c.Download.SegmentThreshold,
			Segments:         c.Download.Segments,
			MaxRetries:       c.Download.MaxRetries,
			RetryBaseDelay:   c.Download.RetryBaseDelay.String(),
			RetryMaxDelay:    c.Download.RetryMaxDelay.String(),
		},
		Network: networkSection{
			Timeout:   c.Network.Timeout.String(),
			UserAgent: c.Network.UserAgent,
		},
		Repositories: repositoriesSection(c.Repositories),
		Layout:       layoutSection(c.Layout),
	})
	if err != nil {
		return nil, lerrors.Wrap(err, lerrors.ErrConfigParse, "failed to render configuration")
	}
	return out, nil
}

// rawBytesProvider implements a koanf provider over in-memory bytes.
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Load builds the merged configuration. An explicit path loads that file
// and errors if it is missing; an empty path falls back to LODESTONE_CONFIG
// and then the XDG config location, both optional. Overrides, typically
// sourced from command-line flags, win over every other layer; keys use
// dotted form ("download.concurrency").
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, lerrors.Wrap(err, lerrors.ErrConfigParse, "failed to load built-in defaults")
	}

	explicit := path != ""
	if path == "" {
		path = userConfigPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, lerrors.Wrapf(err, lerrors.ErrConfigParse, "failed to load config from %s", path)
			}
		} else if explicit {
			return nil, lerrors.Wrapf(err, lerrors.ErrConfigLoad, "config file %s not readable", path)
		}
	}

	if err := k.Load(env.Provider("LODESTONE_", ".", envKeyMapper(k.Keys())), nil); err != nil {
		return nil, lerrors.Wrap(err, lerrors.ErrConfigLoad, "failed to load environment overrides")
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, lerrors.Wrap(err, lerrors.ErrConfigLoad, "failed to apply overrides")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, lerrors.Wrap(err, lerrors.ErrConfigParse, "failed to decode configuration")
	}
	return &cfg, nil
}

// envKeyMapper translates LODESTONE_* variable names onto config keys. A
// flat underscore-to-dot rewrite cannot tell section separators from
// underscores inside a key (LODESTONE_DOWNLOAD_MAX_RETRIES must become
// download.max_retries, not download.max.retries), so the already-loaded
// key set disambiguates; names matching no known key fall back to the flat
// form.
func envKeyMapper(known []string) func(string) string {
	flatToKey := make(map[string]string, len(known))
	for _, key := range known {
		flatToKey[strings.ReplaceAll(key, "_", ".")] = key
	}
	return func(name string) string {
		flat := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, "LODESTONE_")), "_", ".")
		if key, ok := flatToKey[flat]; ok {
			return key
		}
		return flat
	}
}

func userConfigPath() string {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p
	}
	return filepath.Join(xdg.ConfigHome, layout.AppDirName, "config.toml")
}
