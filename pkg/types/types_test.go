package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgumentUnmarshalBareString(t *testing.T) {
	var arg Argument
	require.NoError(t, json.Unmarshal([]byte(`"--gameDir"`), &arg))
	assert.Empty(t, arg.Rules)
	assert.Equal(t, []string{"--gameDir"}, arg.Values)
}

func TestArgumentUnmarshalConditional(t *testing.T) {
	raw := `{
		"rules": [{"action": "allow", "os": {"name": "osx"}}],
		"value": ["-XstartOnFirstThread"]
	}`
	var arg Argument
	require.NoError(t, json.Unmarshal([]byte(raw), &arg))
	require.Len(t, arg.Rules, 1)
	assert.Equal(t, ActionAllow, arg.Rules[0].Action)
	assert.Equal(t, []string{"-XstartOnFirstThread"}, arg.Values)
}

func TestArgumentUnmarshalConditionalSingleValue(t *testing.T) {
	raw := `{"rules": [{"action": "allow"}], "value": "-Xss1M"}`
	var arg Argument
	require.NoError(t, json.Unmarshal([]byte(raw), &arg))
	assert.Equal(t, []string{"-Xss1M"}, arg.Values)
}

func TestArgumentMarshalRoundTrip(t *testing.T) {
	// Unconditional single tokens round-trip to the bare-string form.
	data, err := json.Marshal(Argument{Values: []string{"--version"}})
	require.NoError(t, err)
	assert.Equal(t, `"--version"`, string(data))

	// Conditioned arguments keep the object form.
	arg := Argument{
		Rules:  []Rule{{Action: ActionAllow, OS: &OSCondition{Name: "windows"}}},
		Values: []string{"--width", "854"},
	}
	data, err = json.Marshal(arg)
	require.NoError(t, err)

	var back Argument
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, arg.Values, back.Values)
	require.Len(t, back.Rules, 1)
	assert.Equal(t, "windows", back.Rules[0].OS.Name)
}

func TestDescriptorUnknownFieldsTolerated(t *testing.T) {
	raw := `{"id": "1.21", "complianceLevel": 1, "minimumLauncherVersion": 21}`
	var desc VersionDescriptor
	require.NoError(t, json.Unmarshal([]byte(raw), &desc))
	assert.Equal(t, "1.21", desc.ID)
}

func TestNativeClassifier(t *testing.T) {
	lib := Library{Natives: map[string]string{
		"windows": "natives-windows-${arch}",
		"linux":   "natives-linux",
	}}

	assert.Equal(t, "natives-linux", lib.NativeClassifier(Platform{OS: "linux", Arch: "x86_64"}))
	assert.Equal(t, "natives-windows-64", lib.NativeClassifier(Platform{OS: "windows", Arch: "x86_64"}))
	assert.Equal(t, "natives-windows-32", lib.NativeClassifier(Platform{OS: "windows", Arch: "x86"}))
	assert.Empty(t, lib.NativeClassifier(Platform{OS: "osx", Arch: "arm64"}))
}

func TestExtractRulesExcluded(t *testing.T) {
	var nilRules *ExtractRules
	assert.False(t, nilRules.Excluded("anything.dll"))

	rules := &ExtractRules{Exclude: []string{"META-INF/"}}
	assert.True(t, rules.Excluded("META-INF/MANIFEST.MF"))
	assert.False(t, rules.Excluded("lwjgl.dll"))
}

func TestChecksumIsZero(t *testing.T) {
	assert.True(t, Checksum{}.IsZero())
	assert.True(t, Checksum{Kind: ChecksumSHA1}.IsZero())
	assert.False(t, Checksum{Kind: ChecksumSHA1, Value: "abc"}.IsZero())
}

func TestDownloadStateProgress(t *testing.T) {
	state := DownloadState{
		Size: 100,
		Segments: []SegmentState{
			{Offset: 0, Length: 50, Done: 50},
			{Offset: 50, Length: 50, Done: 20},
		},
	}
	assert.Equal(t, int64(70), state.BytesDone())
	assert.False(t, state.Complete())

	state.Segments[1].Done = 50
	assert.True(t, state.Complete())
}

func TestTaskStateTerminal(t *testing.T) {
	for _, s := range []TaskState{TaskDone, TaskFailed, TaskCancelled} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []TaskState{TaskQueued, TaskProbing, TaskDownloading, TaskVerifying} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestAggregateFraction(t *testing.T) {
	assert.Equal(t, float64(1), AggregateProgress{}.Fraction())
	assert.Equal(t, 0.5, AggregateProgress{BytesDone: 50, BytesTotal: 100}.Fraction())
}
