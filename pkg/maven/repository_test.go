package maven

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/testutil"
)

const fabricMetadata = `<?xml version="1.0" encoding="UTF-8"?>
<metadata>
  <groupId>net.fabricmc</groupId>
  <artifactId>fabric-loader</artifactId>
  <versioning>
    <latest>0.16.0</latest>
    <release>0.15.11</release>
    <versions>
      <version>0.15.11</version>
      <version>0.16.0</version>
    </versions>
  </versioning>
</metadata>`

func TestRepositoryPinPlaceholders(t *testing.T) {
	server := testutil.NewArtifactServer(t, map[string][]byte{
		"/net/fabricmc/fabric-loader/maven-metadata.xml": []byte(fabricMetadata),
	})
	repo := NewRepository(server.URL, nil)

	tests := []struct {
		version string
		want    string
	}{
		{"latest", "0.16.0"},
		{"release", "0.15.11"},
		{"0.15.11", "0.15.11"}, // concrete versions skip the fetch
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			c, err := Parse("net.fabricmc:fabric-loader:" + tt.version)
			require.NoError(t, err)
			pinned, err := repo.Pin(context.Background(), c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pinned.Version)
		})
	}

	// Two placeholder pins, concrete skipped.
	assert.Equal(t, 2, server.RequestCount("/net/fabricmc/fabric-loader/maven-metadata.xml"))
}

func TestRepositoryPinUnknownArtifact(t *testing.T) {
	server := testutil.NewArtifactServer(t, nil)
	repo := NewRepository(server.URL, nil)

	c, err := Parse("com.acme:ghost:latest")
	require.NoError(t, err)
	_, err = repo.Pin(context.Background(), c)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}
