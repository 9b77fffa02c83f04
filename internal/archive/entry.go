package archive

import (
	"bytes"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one source file or directory marker handed to the Producer.
type Entry struct {
	Path    string // relative path, either separator
	Dir     bool
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time // zero means "now"
	// Open returns the content. It is called at most once and only for files,
	// and may be nil only for empty files.
	Open func() (io.ReadCloser, error)
}

// FileEntry builds an in-memory file entry.
func FileEntry(path string, data []byte, modTime time.Time) Entry {
	return Entry{
		Path:    path,
		Size:    int64(len(data)),
		Mode:    0o644,
		ModTime: modTime,
		Open:    func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// DirEntry builds a directory marker entry.
func DirEntry(path string) Entry {
	return Entry{Path: path, Dir: true, Mode: fs.ModeDir | 0o755}
}

// Entries adapts a slice to the sequence the Producer consumes.
func Entries(entries ...Entry) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Walk yields every regular file and directory under root in lexical order.
// Paths are relative to root and use forward slashes. Other file types such
// as symlinks and sockets are skipped.
func Walk(root string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == root {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if !d.IsDir() && !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			entry := Entry{Path: rel, Dir: d.IsDir(), Mode: info.Mode(), ModTime: info.ModTime()}
			if !entry.Dir {
				entry.Size = info.Size()
				entry.Open = func() (io.ReadCloser, error) { return os.Open(p) }
			}
			if !yield(entry, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, err)
		}
	}
}

// normalizePath converts separators and strips leading "./" and "/".
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		default:
			return strings.TrimSuffix(p, "/")
		}
	}
}

// firstSegment returns the first path element of a normalized path.
func firstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
