// Package manifest fetches raw version descriptors and resolves inheritance
// chains into fully-merged descriptors.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/arthur-debert/lodestone/pkg/checksum"
	"github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/types"
)

// Source supplies raw version descriptors by identifier. Results are
// immutable once returned. A missing identifier is reported with the
// NOT_FOUND error code.
type Source interface {
	Descriptor(ctx context.Context, id string) (*types.VersionDescriptor, error)
}

// manifestDocument is the version manifest service's listing format.
type manifestDocument struct {
	Versions []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"versions"`
}

// HTTPSource fetches descriptors from a version manifest service, keeping a
// raw-JSON copy on disk so repeated resolutions skip the network. Local
// descriptors (e.g. loader output dropped into the cache dir) take
// precedence over remote ones.
type HTTPSource struct {
	ManifestURL string
	CacheDir    string
	Client      *http.Client

	mu    sync.Mutex
	index map[string]string // id -> descriptor URL
}

// NewHTTPSource builds a source for the given manifest URL, caching raw
// descriptor JSON under cacheDir.
func NewHTTPSource(manifestURL, cacheDir string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		ManifestURL: manifestURL,
		CacheDir:    cacheDir,
		Client:      client,
	}
}

// Descriptor returns the raw descriptor for id, from the local cache when
// present, otherwise from the manifest service.
func (s *HTTPSource) Descriptor(ctx context.Context, id string) (*types.VersionDescriptor, error) {
	if desc, err := s.readCached(id); err == nil {
		return desc, nil
	}

	url, err := s.descriptorURL(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.get(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDescriptorFetch, "fetching descriptor for %s", id)
	}

	var desc types.VersionDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDescriptorParse, "descriptor for %s is not valid JSON", id)
	}

	s.writeCache(id, data)
	return &desc, nil
}

func (s *HTTPSource) readCached(id string) (*types.VersionDescriptor, error) {
	data, err := os.ReadFile(s.cachePath(id))
	if err != nil {
		return nil, err
	}
	var desc types.VersionDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (s *HTTPSource) writeCache(id string, data []byte) {
	path := s.cachePath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	// Cache writes are best-effort; a failed write only costs a refetch.
	_ = os.WriteFile(path, data, 0644)
}

func (s *HTTPSource) cachePath(id string) string {
	return filepath.Join(s.CacheDir, "versions", id+".json")
}

func (s *HTTPSource) descriptorURL(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		data, err := s.get(ctx, s.ManifestURL)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrDescriptorFetch, "fetching version manifest")
		}
		var doc manifestDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return "", errors.Wrap(err, errors.ErrDescriptorParse, "version manifest is not valid JSON")
		}
		s.index = make(map[string]string, len(doc.Versions))
		for _, v := range doc.Versions {
			s.index[v.ID] = v.URL
		}
	}

	url, ok := s.index[id]
	if !ok {
		return "", errors.Newf(errors.ErrNotFound, "version %q not in manifest", id)
	}
	return url, nil
}

func (s *HTTPSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}
	return io.ReadAll(resp.Body)
}

// FetchAssetIndex downloads and parses the asset index a descriptor points
// at, verifying it against the reference checksum and keeping a copy at
// destPath for the game to read.
func (s *HTTPSource) FetchAssetIndex(ctx context.Context, ref *types.AssetIndexRef, destPath string) (*types.AssetIndex, error) {
	if cached, err := os.ReadFile(destPath); err == nil {
		if index, ok := parseVerifiedIndex(cached, ref); ok {
			return index, nil
		}
	}

	data, err := s.get(ctx, ref.URL)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDescriptorFetch, "fetching asset index %s", ref.ID)
	}

	index, ok := parseVerifiedIndex(data, ref)
	if !ok {
		return nil, errors.Newf(errors.ErrChecksumMismatch, "asset index %s failed verification", ref.ID)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "cannot create asset index directory for %s", ref.ID)
	}
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileWrite, "cannot write asset index %s", ref.ID)
	}
	return index, nil
}

func parseVerifiedIndex(data []byte, ref *types.AssetIndexRef) (*types.AssetIndex, bool) {
	if ref.SHA1 != "" {
		sum, err := checksum.SumBytes(types.ChecksumSHA1, data)
		if err != nil || sum != ref.SHA1 {
			return nil, false
		}
	}
	var index types.AssetIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, false
	}
	return &index, true
}
