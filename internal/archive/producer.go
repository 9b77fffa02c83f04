package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"

	"github.com/compulim/remotebuild/internal/foundation/errors"
	"github.com/compulim/remotebuild/internal/logfields"
)

// TacoFile names the project file whose "cordova-cli" value selects the Cordova version.
const TacoFile = "taco.json"

// Options configures a Producer.
type Options struct {
	RootFolder  string   // every included entry is placed under this folder
	ExcludeDirs []string // first path segments that are never archived
	Exclude     []string // gitignore-style patterns, matched against the relative path
	Logger      *slog.Logger
}

// Producer turns a sequence of entries into one gzip-compressed tar stream.
// A Producer is single use.
type Producer struct {
	opts    Options
	matcher gitignore.Matcher
	logger  *slog.Logger

	files   atomic.Int64
	written atomic.Int64

	mu             sync.Mutex
	cordovaVersion string
	digest         string
	done           chan struct{}
	err            error
}

// NewProducer builds a Producer.
func NewProducer(opts Options) *Producer {
	var patterns []gitignore.Pattern
	for _, raw := range opts.Exclude {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(raw, nil))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		opts:    opts,
		matcher: gitignore.NewMatcher(patterns),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Excluded reports whether a normalized relative path is left out of the archive.
func (p *Producer) Excluded(rel string, isDir bool) bool {
	if slices.Contains(p.opts.ExcludeDirs, firstSegment(rel)) {
		return true
	}
	return p.matcher.Match(strings.Split(rel, "/"), isDir)
}

// Files returns the number of entries written so far. Safe for concurrent use.
func (p *Producer) Files() int64 { return p.files.Load() }

// BytesWritten returns the compressed bytes emitted so far.
func (p *Producer) BytesWritten() int64 { return p.written.Load() }

// CordovaVersion returns the version requested by taco.json, if one was seen.
func (p *Producer) CordovaVersion() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cordovaVersion
}

// Digest returns the hex blake3 digest of the emitted stream once it has been finalized.
func (p *Producer) Digest() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.digest
}

// Stream writes the archive in a background goroutine and returns the read
// side of the pipe. The reader is the only consumer; closing it early stops
// the producer. Wait reports the producer's own result.
func (p *Producer) Stream(ctx context.Context, entries iter.Seq2[Entry, error]) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		err := p.Write(ctx, pw, entries)
		_ = pw.CloseWithError(err)
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()
	return pr
}

// Wait blocks until a Stream started earlier finished and returns its error.
func (p *Producer) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Write writes the whole archive to w. The archive is finalized only after
// the last entry has been written.
func (p *Producer) Write(ctx context.Context, w io.Writer, entries iter.Seq2[Entry, error]) error {
	hasher := blake3.New()
	out := io.MultiWriter(&countingWriter{w: w, n: &p.written}, hasher)
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for entry, err := range entries {
		if err != nil {
			return errors.ArchiveError("failed to enumerate source entries").WithCause(err).Build()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.writeEntry(tw, entry); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return errors.ArchiveError("failed to finalize tar stream").WithCause(err).Build()
	}
	if err := gz.Close(); err != nil {
		return errors.ArchiveError("failed to finalize gzip stream").WithCause(err).Build()
	}

	p.mu.Lock()
	p.digest = hex.EncodeToString(hasher.Sum(nil))
	p.mu.Unlock()
	return nil
}

func (p *Producer) writeEntry(tw *tar.Writer, entry Entry) error {
	rel := normalizePath(entry.Path)
	if rel == "" {
		return nil
	}

	var content []byte
	if rel == TacoFile && !entry.Dir {
		data, err := readAll(entry)
		if err != nil {
			return err
		}
		if err := p.detectCordovaVersion(data); err != nil {
			return err
		}
		content = data
	}

	if p.Excluded(rel, entry.Dir) {
		p.logger.Debug("Excluded from archive", logfields.Path(rel))
		return nil
	}

	modTime := entry.ModTime
	if modTime.IsZero() {
		modTime = time.Now()
	}
	hdr := &tar.Header{
		Name:    path.Join(p.opts.RootFolder, rel),
		ModTime: modTime,
		Mode:    int64(entry.Mode.Perm()),
	}
	if entry.Dir {
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
		if hdr.Mode == 0 {
			hdr.Mode = 0o755
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return errors.ArchiveError("failed to write directory header").WithCause(err).WithContext("path", rel).Build()
		}
		p.files.Add(1)
		return nil
	}

	hdr.Typeflag = tar.TypeReg
	if hdr.Mode == 0 {
		hdr.Mode = 0o644
	}
	if content == nil && entry.Size < 0 {
		data, err := readAll(entry)
		if err != nil {
			return err
		}
		content = data
	}
	if content == nil && entry.Size > 0 && entry.Open == nil {
		return errors.ArchiveError(fmt.Sprintf("file entry declares %d bytes but has no content source", entry.Size)).
			WithContext("path", rel).
			Build()
	}
	if content != nil {
		hdr.Size = int64(len(content))
	} else {
		hdr.Size = entry.Size
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return errors.ArchiveError("failed to write file header").WithCause(err).WithContext("path", rel).Build()
	}

	if content != nil {
		if _, err := tw.Write(content); err != nil {
			return errors.ArchiveError("failed to write file content").WithCause(err).WithContext("path", rel).Build()
		}
	} else if entry.Open != nil {
		if err := copyEntry(tw, entry, rel); err != nil {
			return err
		}
	}
	p.files.Add(1)
	return nil
}

func copyEntry(tw *tar.Writer, entry Entry, rel string) error {
	rc, err := entry.Open()
	if err != nil {
		return errors.FileSystemError("failed to open source file").WithCause(err).WithContext("path", rel).Build()
	}
	defer func() { _ = rc.Close() }()
	n, err := io.Copy(tw, rc)
	if err != nil {
		return errors.ArchiveError("failed to write file content").WithCause(err).WithContext("path", rel).Build()
	}
	if n != entry.Size {
		return errors.ArchiveError(fmt.Sprintf("file changed while archiving: expected %d bytes, read %d", entry.Size, n)).
			WithContext("path", rel).
			Build()
	}
	return nil
}

func readAll(entry Entry) ([]byte, error) {
	if entry.Open == nil {
		return []byte{}, nil
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, errors.FileSystemError("failed to open source file").WithCause(err).WithContext("path", entry.Path).Build()
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.FileSystemError("failed to read source file").WithCause(err).WithContext("path", entry.Path).Build()
	}
	return data, nil
}

func (p *Producer) detectCordovaVersion(data []byte) error {
	version, err := ParseTacoJSON(data)
	if err != nil {
		return err
	}
	if version == "" {
		return nil
	}
	p.mu.Lock()
	p.cordovaVersion = version
	p.mu.Unlock()
	p.logger.Info("taco.json requested Cordova version", "cordova_version", version)
	return nil
}

// ParseTacoJSON returns the "cordova-cli" value of a taco.json document.
func ParseTacoJSON(data []byte) (string, error) {
	var doc struct {
		CordovaCLI string `json:"cordova-cli"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), &doc); err != nil {
		return "", errors.ArchiveError("invalid taco.json").WithCause(err).Build()
	}
	return doc.CordovaCLI, nil
}

type countingWriter struct {
	w io.Writer
	n *atomic.Int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n.Add(int64(n))
	return n, err
}
