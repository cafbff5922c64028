package types

import "runtime"

// Platform describes the environment a plan is being built for. Rule
// conditions are matched against these fields; feature flags come from the
// caller (e.g. demo mode, custom resolution).
type Platform struct {
	// OS is the descriptor-format OS name: "linux", "osx" or "windows".
	OS string

	// Arch is the descriptor-format architecture: "x86", "x86_64" or "arm64".
	Arch string

	// Features holds boolean feature flags referenced by argument and
	// library rules. A flag absent from the map is treated as false.
	Features map[string]bool
}

// CurrentPlatform returns the Platform for the running process.
func CurrentPlatform() Platform {
	p := Platform{Features: map[string]bool{}}

	switch runtime.GOOS {
	case "darwin":
		p.OS = "osx"
	case "windows":
		p.OS = "windows"
	default:
		p.OS = "linux"
	}

	switch runtime.GOARCH {
	case "amd64":
		p.Arch = "x86_64"
	case "arm64":
		p.Arch = "arm64"
	case "386":
		p.Arch = "x86"
	default:
		p.Arch = runtime.GOARCH
	}

	return p
}

// Feature reports whether a feature flag is enabled on this platform.
func (p Platform) Feature(name string) bool {
	return p.Features[name]
}

// Bits returns "64" or "32" for native classifier templates that carry an
// ${arch} placeholder.
func (p Platform) Bits() string {
	if p.Arch == "x86" {
		return "32"
	}
	return "64"
}
