package maven

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/lodestone/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Coordinate
		wantErr bool
	}{
		{
			name:  "plain coordinate",
			input: "org.lwjgl:lwjgl:3.3.3",
			want:  Coordinate{Group: "org.lwjgl", Artifact: "lwjgl", Version: "3.3.3", Extension: "jar"},
		},
		{
			name:  "with classifier",
			input: "org.lwjgl:lwjgl:3.3.3:natives-linux",
			want:  Coordinate{Group: "org.lwjgl", Artifact: "lwjgl", Version: "3.3.3", Classifier: "natives-linux", Extension: "jar"},
		},
		{
			name:  "with extension",
			input: "net.fabricmc:fabric-loader:0.16.0@zip",
			want:  Coordinate{Group: "net.fabricmc", Artifact: "fabric-loader", Version: "0.16.0", Extension: "zip"},
		},
		{name: "too few parts", input: "org.lwjgl:lwjgl", wantErr: true},
		{name: "too many parts", input: "a:b:c:d:e", wantErr: true},
		{name: "empty segment", input: "a::c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoordinatePath(t *testing.T) {
	c, err := Parse("org.lwjgl:lwjgl:3.3.3")
	require.NoError(t, err)
	assert.Equal(t, "org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3.jar", c.Path())

	n := c.WithClassifier("natives-linux")
	assert.Equal(t, "org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3-natives-linux.jar", n.Path())

	assert.Equal(t,
		"https://libraries.example.net/org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3.jar",
		c.URL("https://libraries.example.net/"))
}

func TestDedupKeyIgnoresVersionKeepsClassifier(t *testing.T) {
	v1, _ := Parse("org.lwjgl:lwjgl:3.3.2")
	v2, _ := Parse("org.lwjgl:lwjgl:3.3.3")
	assert.Equal(t, v1.DedupKey(), v2.DedupKey())

	plain, _ := Parse("org.lwjgl:lwjgl:3.3.3")
	native, _ := Parse("org.lwjgl:lwjgl:3.3.3:natives-linux")
	assert.NotEqual(t, plain.DedupKey(), native.DedupKey())
}

func TestMetadata(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<metadata>
  <groupId>net.fabricmc</groupId>
  <artifactId>fabric-loader</artifactId>
  <versioning>
    <latest>0.16.1</latest>
    <release>0.16.0</release>
    <versions>
      <version>0.15.11</version>
      <version>0.16.0</version>
      <version>0.16.1</version>
    </versions>
  </versioning>
</metadata>`

	md, err := ParseMetadata([]byte(xml))
	require.NoError(t, err)
	assert.Equal(t, "net.fabricmc", md.GroupID)
	assert.Equal(t, []string{"0.15.11", "0.16.0", "0.16.1"}, md.Versions)

	v, err := md.ResolveVersion("latest")
	require.NoError(t, err)
	assert.Equal(t, "0.16.1", v)

	v, err = md.ResolveVersion("release")
	require.NoError(t, err)
	assert.Equal(t, "0.16.0", v)

	v, err = md.ResolveVersion("0.15.11")
	require.NoError(t, err)
	assert.Equal(t, "0.15.11", v)

	_, err = ParseMetadata([]byte("not xml at all <"))
	assert.Error(t, err)
}

func TestMetadataPath(t *testing.T) {
	c, _ := Parse("net.fabricmc:fabric-loader:release")
	assert.Equal(t, "net/fabricmc/fabric-loader/maven-metadata.xml", c.MetadataPath())
}
