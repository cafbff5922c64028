package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/layout"
	"github.com/arthur-debert/lodestone/pkg/testutil"
	"github.com/arthur-debert/lodestone/pkg/types"
)

func linux64() types.Platform {
	return types.Platform{OS: "linux", Arch: "x86_64", Features: map[string]bool{}}
}

func testLayout(t *testing.T) *layout.Layout {
	t.Helper()
	l, err := layout.New(t.TempDir(), layout.ModeIsolated)
	require.NoError(t, err)
	return l
}

func clientDescriptor(body []byte) *types.VersionDescriptor {
	return &types.VersionDescriptor{
		ID: "1.21",
		Downloads: map[string]*types.DownloadInfo{
			"client": {
				URL:  "https://dl.example/client.jar",
				SHA1: testutil.SHA1(body),
				Size: int64(len(body)),
			},
		},
	}
}

func TestBuildClientTask(t *testing.T) {
	l := testLayout(t)
	p, err := Build(clientDescriptor([]byte("jar")), nil, linux64(), l, Options{})
	require.NoError(t, err)

	require.Len(t, p.Tasks, 1)
	task := p.Tasks[0]
	assert.Equal(t, types.ArtifactClient, task.Kind)
	assert.Equal(t, l.ClientJar("1.21"), task.Destination)
	assert.Equal(t, types.ChecksumSHA1, task.Checksum.Kind)
}

func TestBuildLibraryTasks(t *testing.T) {
	desc := &types.VersionDescriptor{
		ID: "1.21",
		Libraries: []types.Library{
			{
				Name: "com.mojang:brigadier:1.2.9",
				Downloads: &types.LibraryDownloads{
					Artifact: &types.DownloadInfo{
						Path: "com/mojang/brigadier/1.2.9/brigadier-1.2.9.jar",
						URL:  "https://libraries.example/com/mojang/brigadier/1.2.9/brigadier-1.2.9.jar",
						SHA1: "abcd",
						Size: 42,
					},
				},
			},
			{
				// No direct download: resolved against the repository.
				Name: "net.fabricmc:fabric-loader:0.16.0",
			},
			{
				// Excluded by rules on this platform.
				Name:  "ca.weblite:java-objc-bridge:1.1",
				Rules: []types.Rule{{Action: types.ActionAllow, OS: &types.OSCondition{Name: "osx"}}},
			},
		},
	}

	l := testLayout(t)
	p, err := Build(desc, nil, linux64(), l, Options{Repository: "https://maven.example/"})
	require.NoError(t, err)

	require.Len(t, p.Tasks, 2)
	assert.Equal(t, "com/mojang/brigadier/1.2.9/brigadier-1.2.9.jar", p.Tasks[0].ID)
	assert.Equal(t,
		"https://maven.example/net/fabricmc/fabric-loader/0.16.0/fabric-loader-0.16.0.jar",
		p.Tasks[1].URL)
	assert.Equal(t,
		l.LibraryPath("net/fabricmc/fabric-loader/0.16.0/fabric-loader-0.16.0.jar"),
		p.Tasks[1].Destination)
}

func TestBuildNativeTasks(t *testing.T) {
	desc := &types.VersionDescriptor{
		ID: "1.21",
		Libraries: []types.Library{
			{
				Name:    "org.lwjgl:lwjgl:3.3.3",
				Natives: map[string]string{"linux": "natives-linux"},
				Extract: &types.ExtractRules{Exclude: []string{"META-INF/"}},
				Downloads: &types.LibraryDownloads{
					Artifact: &types.DownloadInfo{
						Path: "org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3.jar",
						URL:  "https://libraries.example/lwjgl.jar",
					},
					Classifiers: map[string]*types.DownloadInfo{
						"natives-linux": {
							Path: "org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3-natives-linux.jar",
							URL:  "https://libraries.example/lwjgl-natives-linux.jar",
						},
					},
				},
			},
		},
	}

	l := testLayout(t)
	p, err := Build(desc, nil, linux64(), l, Options{})
	require.NoError(t, err)

	require.Len(t, p.Tasks, 2)
	native := p.Tasks[1]
	assert.Equal(t, types.ArtifactNative, native.Kind)
	assert.Equal(t, l.NativesDir("1.21"), native.ExtractTo)
	require.NotNil(t, native.Extract)

	// Windows platform has no natives entry: only the primary artifact.
	p, err = Build(desc, nil, types.Platform{OS: "windows", Arch: "x86_64"}, l, Options{})
	require.NoError(t, err)
	assert.Len(t, p.Tasks, 1)
}

func TestBuildAssetTasks(t *testing.T) {
	hashA := "aa39a3ee5e6b4b0d3255bfef95601890afd80709"
	hashB := "bb49a3ee5e6b4b0d3255bfef95601890afd80709"
	index := &types.AssetIndex{
		Objects: map[string]types.AssetObject{
			"minecraft/sounds/a.ogg": {Hash: hashA, Size: 10},
			"minecraft/sounds/b.ogg": {Hash: hashB, Size: 20},
			// Same content as a.ogg: must not produce a second task.
			"minecraft/sounds/copy.ogg": {Hash: hashA, Size: 10},
		},
	}

	l := testLayout(t)
	p, err := Build(&types.VersionDescriptor{ID: "1.21"}, index, linux64(), l, Options{AssetBase: "https://resources.example"})
	require.NoError(t, err)

	require.Len(t, p.Tasks, 2)
	assert.Equal(t, hashA, p.Tasks[0].ID)
	assert.Equal(t, "https://resources.example/aa/"+hashA, p.Tasks[0].URL)
	assert.Equal(t, l.AssetObjectPath(hashA), p.Tasks[0].Destination)
	// The hash is the checksum: content addressing needs no separate field.
	assert.Equal(t, hashA, p.Tasks[0].Checksum.Value)
}

func TestBuildRejectsMalformedAssetHash(t *testing.T) {
	index := &types.AssetIndex{
		Objects: map[string]types.AssetObject{
			"minecraft/sounds/a.ogg": {Hash: "a", Size: 10},
		},
	}

	_, err := Build(&types.VersionDescriptor{ID: "1.21"}, index, linux64(), testLayout(t), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrDescriptorParse))
	assert.Contains(t, err.Error(), "minecraft/sounds/a.ogg")
}

func TestBuildPreSatisfied(t *testing.T) {
	body := []byte("client bytes")
	desc := clientDescriptor(body)
	l := testLayout(t)

	dest := l.ClientJar("1.21")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
	require.NoError(t, os.WriteFile(dest, body, 0644))

	p, err := Build(desc, nil, linux64(), l, Options{})
	require.NoError(t, err)
	assert.Empty(t, p.Tasks)
	require.Len(t, p.Satisfied, 1)
	assert.Equal(t, int64(len(body)), p.BytesTotal())
}

func TestBuildCorruptFileNotSatisfied(t *testing.T) {
	desc := clientDescriptor([]byte("client bytes"))
	l := testLayout(t)

	dest := l.ClientJar("1.21")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
	// Right size, wrong content.
	require.NoError(t, os.WriteFile(dest, []byte("corrupted!!!"), 0644))

	p, err := Build(desc, nil, linux64(), l, Options{})
	require.NoError(t, err)
	assert.Len(t, p.Tasks, 1)
	assert.Empty(t, p.Satisfied)
}

func TestBuildUnresolvableLibrary(t *testing.T) {
	desc := &types.VersionDescriptor{
		ID:        "1.21",
		Libraries: []types.Library{{Name: "not-a-coordinate"}},
	}

	_, err := Build(desc, nil, linux64(), testLayout(t), Options{Repository: "https://maven.example"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrUnresolvableLibrary))
	assert.Contains(t, err.Error(), "not-a-coordinate")
}

func TestBuildNoRepositoryConfigured(t *testing.T) {
	desc := &types.VersionDescriptor{
		ID:        "1.21",
		Libraries: []types.Library{{Name: "net.fabricmc:fabric-loader:0.16.0"}},
	}

	_, err := Build(desc, nil, linux64(), testLayout(t), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrUnresolvableLibrary))
}

func TestPlanIDStable(t *testing.T) {
	root := t.TempDir()
	l1, err := layout.New(root, layout.ModeIsolated)
	require.NoError(t, err)
	l2, err := layout.New(root, layout.ModeIsolated)
	require.NoError(t, err)

	desc := clientDescriptor([]byte("x"))
	p1, err := Build(desc, nil, linux64(), l1, Options{})
	require.NoError(t, err)
	p2, err := Build(desc, nil, linux64(), l2, Options{})
	require.NoError(t, err)

	assert.Equal(t, p1.ID, p2.ID)
}
