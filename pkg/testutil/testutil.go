// Package testutil provides shared helpers for lodestone's tests: an
// in-memory descriptor source, a range-capable artifact server, and
// checksum fixtures.
package testutil

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/types"
)

// FakeSource is a map-backed descriptor source. It counts fetches per id so
// tests can assert how often the resolver hit the source.
type FakeSource struct {
	mu          sync.Mutex
	descriptors map[string]*types.VersionDescriptor
	fetches     map[string]int
}

// NewFakeSource builds a source over the given descriptors.
func NewFakeSource(descriptors ...*types.VersionDescriptor) *FakeSource {
	s := &FakeSource{
		descriptors: make(map[string]*types.VersionDescriptor),
		fetches:     make(map[string]int),
	}
	for _, d := range descriptors {
		s.descriptors[d.ID] = d
	}
	return s
}

// Add registers another descriptor.
func (s *FakeSource) Add(d *types.VersionDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptors[d.ID] = d
}

// Descriptor implements manifest.Source.
func (s *FakeSource) Descriptor(_ context.Context, id string) (*types.VersionDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[id]++
	d, ok := s.descriptors[id]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "version %q not in manifest", id)
	}
	return d, nil
}

// Fetches returns how many times the given id was requested.
func (s *FakeSource) Fetches(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[id]
}

// SHA1 returns the hex sha1 of data.
func SHA1(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// SHA256 returns the hex sha256 of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA1Checksum builds a sha1 Checksum for data.
func SHA1Checksum(data []byte) types.Checksum {
	return types.Checksum{Kind: types.ChecksumSHA1, Value: SHA1(data)}
}
