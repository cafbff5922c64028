package maven

import (
	"context"
	"io"
	"net/http"

	"github.com/arthur-debert/lodestone/pkg/errors"
)

// Repository fetches version metadata from a Maven repository, used to pin
// the "latest" and "release" placeholder versions to concrete ones.
type Repository struct {
	base   string
	client *http.Client
}

// NewRepository creates a repository client over a base URL. A nil client
// uses http.DefaultClient.
func NewRepository(base string, client *http.Client) *Repository {
	if client == nil {
		client = http.DefaultClient
	}
	return &Repository{base: base, client: client}
}

// Metadata fetches and parses the artifact's maven-metadata.xml.
func (r *Repository) Metadata(ctx context.Context, c Coordinate) (*Metadata, error) {
	url := r.base + "/" + c.MetadataPath()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "bad metadata URL %s", url)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrNetworkFailure, "cannot fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Newf(errors.ErrNotFound, "no metadata for %s:%s", c.Group, c.Artifact)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrNetworkFailure, "GET %s: %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrNetworkFailure, "cannot read %s", url)
	}
	return ParseMetadata(data)
}

// Pin resolves a coordinate's placeholder version against the repository.
// Coordinates with concrete versions come back unchanged without a fetch.
func (r *Repository) Pin(ctx context.Context, c Coordinate) (Coordinate, error) {
	if c.Version != "latest" && c.Version != "release" {
		return c, nil
	}
	md, err := r.Metadata(ctx, c)
	if err != nil {
		return c, err
	}
	version, err := md.ResolveVersion(c.Version)
	if err != nil {
		return c, err
	}
	c.Version = version
	return c, nil
}
