// Package extract unpacks verified native-library archives into a version's
// natives directory.
package extract

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/lodestone/pkg/errors"
	"github.com/arthur-debert/lodestone/pkg/logging"
	"github.com/arthur-debert/lodestone/pkg/types"
)

// Archive unpacks a jar/zip at archivePath into destDir, skipping
// directories, archive signing metadata and anything the library's
// exclusion rules name. Entries escaping destDir are rejected.
func Archive(archivePath, destDir string, rules *types.ExtractRules) error {
	logger := logging.GetLogger("extract")

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrExtractFailed, "cannot open archive %s", archivePath)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create natives directory %s", destDir)
	}

	extracted := 0
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := entry.Name
		if strings.HasPrefix(name, "META-INF/") || rules.Excluded(name) {
			continue
		}

		dest := filepath.Join(destDir, filepath.FromSlash(name))
		rel, err := filepath.Rel(destDir, dest)
		if err != nil || strings.HasPrefix(rel, "..") {
			return errors.Newf(errors.ErrExtractFailed, "archive entry %q escapes destination", name)
		}

		if err := extractEntry(entry, dest); err != nil {
			return err
		}
		extracted++
	}

	logger.Debug().
		Str("archive", filepath.Base(archivePath)).
		Int("entries", extracted).
		Msg("Natives extracted")
	return nil
}

func extractEntry(entry *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create directory for %s", dest)
	}

	src, err := entry.Open()
	if err != nil {
		return errors.Wrapf(err, errors.ErrExtractFailed, "cannot read archive entry %s", entry.Name)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileCreate, "cannot create %s", dest)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", dest)
	}
	return nil
}
