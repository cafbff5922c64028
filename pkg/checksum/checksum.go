// Package checksum computes and verifies artifact digests. Verification is
// streamed in chunks so large files never sit fully in memory and workers
// stay responsive to cancellation.
package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/types"
)

// New returns a fresh hash for the given kind.
func New(kind types.ChecksumKind) (hash.Hash, error) {
	switch kind {
	case types.ChecksumSHA1:
		return sha1.New(), nil
	case types.ChecksumSHA256:
		return sha256.New(), nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unsupported checksum kind %q", kind)
	}
}

// Sum computes the hex digest of a reader's contents.
func Sum(kind types.ChecksumKind, r io.Reader) (string, error) {
	h, err := New(kind)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "checksum read failed")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumBytes computes the hex digest of a byte slice.
func SumBytes(kind types.ChecksumKind, data []byte) (string, error) {
	h, err := New(kind)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile computes the hex digest of a file's contents.
func SumFile(kind types.ChecksumKind, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrNotFound, "cannot open %s", path)
	}
	defer f.Close()
	return Sum(kind, f)
}

// VerifyFile checks a file against an expected checksum. A zero checksum
// verifies trivially. The comparison is case-insensitive on the hex digest.
func VerifyFile(path string, expected types.Checksum) (bool, error) {
	if expected.IsZero() {
		return true, nil
	}
	got, err := SumFile(expected.Kind, path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(got, expected.Value), nil
}

// FileSatisfies reports whether a file exists with the expected size and
// checksum. Missing files are not an error, just unsatisfied.
func FileSatisfies(path string, size int64, expected types.Checksum) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if size > 0 && info.Size() != size {
		return false
	}
	ok, err := VerifyFile(path, expected)
	return err == nil && ok
}
