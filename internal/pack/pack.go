// Package pack serializes a finished document and wraps it into the
// single-entry compressed archive the map editor opens.
package pack

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"timbermap.tools/internal/mapdoc"
)

const (
	// Extension is the archive suffix the map editor recognizes.
	Extension = ".timber"
	// EntryName is the archive member holding the document JSON.
	EntryName = "world.json"

	deflateLevel = 8
)

// Options control what happens to the uncompressed intermediate.
type Options struct {
	// KeepJSON renames the intermediate document next to the archive
	// instead of deleting it, tagging it with the terrain digest.
	KeepJSON bool
	// Digest tags the kept intermediate; only its first 8 characters
	// are used.
	Digest string
}

// Write serializes doc as indented JSON at jsonPath, archives it into
// the sibling .timber file, then removes (or, with KeepJSON, renames)
// the intermediate. It returns the archive path. Write failures are
// surfaced verbatim; no partial cleanup is attempted.
func Write(doc *mapdoc.Map, jsonPath string, opt Options) (string, error) {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return "", fmt.Errorf("pack: encode document: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("pack: write intermediate: %w", err)
	}

	archivePath := withExtension(jsonPath, Extension)
	if err := writeArchive(archivePath, data); err != nil {
		return "", err
	}

	if opt.KeepJSON {
		kept := keptName(jsonPath, opt.Digest)
		if err := os.Rename(jsonPath, kept); err != nil {
			return "", fmt.Errorf("pack: keep intermediate: %w", err)
		}
	} else if err := os.Remove(jsonPath); err != nil {
		return "", fmt.Errorf("pack: remove intermediate: %w", err)
	}
	return archivePath, nil
}

func writeArchive(path string, document []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pack: create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, deflateLevel)
	})

	entry, err := zw.Create(EntryName)
	if err != nil {
		return fmt.Errorf("pack: archive entry: %w", err)
	}
	if _, err := entry.Write(document); err != nil {
		return fmt.Errorf("pack: archive entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("pack: finish archive: %w", err)
	}
	return f.Close()
}

func withExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func keptName(jsonPath, digest string) string {
	stem := strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath))
	if len(digest) > 8 {
		digest = digest[:8]
	}
	return fmt.Sprintf("%s-mapper%s.json", stem, digest)
}
