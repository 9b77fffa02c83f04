package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/compulim/remotebuild/internal/foundation/errors"
)

// File is one file unpacked from a build artifact.
type File struct {
	Path    string // slash separated, relative, never escaping the output root
	Data    []byte
	Mode    fs.FileMode
	ModTime time.Time
}

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

// Extract unpacks a zip or tar.gz artifact. The format is detected from the
// leading magic bytes. Directories are skipped; entries whose path escapes
// the root are rejected.
func Extract(artifact []byte) ([]File, error) {
	switch {
	case len(artifact) == 0:
		return nil, nil
	case bytes.HasPrefix(artifact, zipMagic):
		return extractZip(artifact)
	case bytes.HasPrefix(artifact, gzipMagic):
		return extractTarGz(artifact)
	default:
		return nil, errors.ArchiveError("unrecognized artifact format").
			WithContext("size", len(artifact)).
			Build()
	}
}

func extractZip(artifact []byte) ([]File, error) {
	zr, err := zip.NewReader(bytes.NewReader(artifact), int64(len(artifact)))
	if err != nil {
		return nil, errors.ArchiveError("invalid zip artifact").WithCause(err).Build()
	}
	var files []File
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name, err := safePath(zf.Name)
		if err != nil {
			return nil, err
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, errors.ArchiveError("failed to open artifact entry").WithCause(err).WithContext("path", name).Build()
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, errors.ArchiveError("failed to read artifact entry").WithCause(err).WithContext("path", name).Build()
		}
		files = append(files, File{Path: name, Data: data, Mode: zf.Mode().Perm(), ModTime: zf.Modified})
	}
	return files, nil
}

func extractTarGz(artifact []byte) ([]File, error) {
	gz, err := gzip.NewReader(bytes.NewReader(artifact))
	if err != nil {
		return nil, errors.ArchiveError("invalid gzip artifact").WithCause(err).Build()
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	var files []File
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, errors.ArchiveError("invalid tar artifact").WithCause(err).Build()
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}
		name, err := safePath(hdr.Name)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, errors.ArchiveError("failed to read artifact entry").WithCause(err).WithContext("path", name).Build()
		}
		files = append(files, File{Path: name, Data: data, Mode: fs.FileMode(hdr.Mode).Perm(), ModTime: hdr.ModTime})
	}
}

func safePath(name string) (string, error) {
	cleaned := path.Clean(normalizePath(name))
	if cleaned == "." || !filepath.IsLocal(filepath.FromSlash(cleaned)) {
		return "", errors.ArchiveError(fmt.Sprintf("artifact entry escapes output directory: %q", name)).
			WithContext("path", name).
			Build()
	}
	return cleaned, nil
}
