// Package output writes build results to the local filesystem.
package output

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/compulim/remotebuild/internal/archive"
	"github.com/compulim/remotebuild/internal/config"
	"github.com/compulim/remotebuild/internal/foundation/errors"
	"github.com/compulim/remotebuild/internal/logfields"
	"github.com/compulim/remotebuild/internal/remote"
)

// Writer places the build log, the unpacked artifact and the failure log
// under one output directory.
type Writer struct {
	cfg       config.OutputConfig
	logger    *slog.Logger
	protected []string
}

// New builds a Writer.
func New(cfg config.OutputConfig, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LogFile == "" {
		cfg.LogFile = config.DefaultLogFile
	}
	if cfg.ErrorLogFile == "" {
		cfg.ErrorLogFile = config.DefaultErrorLogFile
	}
	if cfg.Dir == "" {
		cfg.Dir = config.DefaultOutputDir
	}
	return &Writer{cfg: cfg, logger: logger}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.cfg.Dir }

// Protect registers directories that cleaning must never remove: the output
// directory may not equal or contain any of them. The working directory is
// always protected.
func (w *Writer) Protect(dirs ...string) *Writer {
	w.protected = append(w.protected, dirs...)
	return w
}

// CheckClean reports whether cleaning the output directory would remove a
// protected directory. It is a no-op when Clean is not set.
func (w *Writer) CheckClean() error {
	if !w.cfg.Clean {
		return nil
	}
	abs, err := filepath.Abs(w.cfg.Dir)
	if err != nil {
		return errors.FileSystemError("failed to resolve output directory").WithCause(err).WithContext("path", w.cfg.Dir).Build()
	}
	protected := w.protected
	if cwd, err := os.Getwd(); err == nil {
		protected = append([]string{cwd}, protected...)
	}
	if abs == filepath.Dir(abs) {
		return refuseClean(abs, abs)
	}
	for _, dir := range protected {
		p, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if within(realPath(abs), realPath(p)) {
			return refuseClean(abs, p)
		}
	}
	return nil
}

func refuseClean(dir, protected string) error {
	return errors.ValidationError(fmt.Sprintf("refusing to clean output directory %s: it contains %s", dir, protected)).
		WithContext("path", dir).
		WithContext("protected", protected).
		Build()
}

// within reports whether p is dir or lies below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// realPath resolves symlinks when p exists, so a linked output directory
// cannot hide the project it points at.
func realPath(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return filepath.Clean(p)
}

// Prepare creates the output directory, removing it first when Clean is set.
func (w *Writer) Prepare() error {
	if w.cfg.Clean {
		if err := w.CheckClean(); err != nil {
			return err
		}
		abs, _ := filepath.Abs(w.cfg.Dir)
		if err := os.RemoveAll(abs); err != nil {
			return errors.FileSystemError("failed to clean output directory").WithCause(err).WithContext("path", abs).Build()
		}
	}
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return errors.FileSystemError("failed to create output directory").WithCause(err).WithContext("path", w.cfg.Dir).Build()
	}
	return nil
}

// WriteOutcome writes the build log and, when enabled, every file of the
// artifact. It returns the relative paths written, log first.
func (w *Writer) WriteOutcome(out *remote.Outcome) ([]string, error) {
	if err := w.Prepare(); err != nil {
		return nil, err
	}
	if err := w.writeFile(w.cfg.LogFile, out.Log, 0o644); err != nil {
		return nil, err
	}
	written := []string{w.cfg.LogFile}

	if !w.cfg.ExtractArtifact() {
		name := "artifact.bin"
		if err := w.writeFile(name, out.Artifact, 0o644); err != nil {
			return written, err
		}
		return append(written, name), nil
	}

	files, err := archive.Extract(out.Artifact)
	if err != nil {
		return written, err
	}
	for _, f := range files {
		w.logger.Info(fmt.Sprintf("Extracting %s (%s)", f.Path, humanize.Bytes(uint64(len(f.Data)))),
			logfields.File(f.Path),
			logfields.Bytes(len(f.Data)))
		mode := f.Mode
		if mode == 0 {
			mode = 0o644
		}
		if err := w.writeFile(f.Path, f.Data, mode); err != nil {
			return written, err
		}
		if !f.ModTime.IsZero() {
			_ = os.Chtimes(filepath.Join(w.cfg.Dir, filepath.FromSlash(f.Path)), f.ModTime, f.ModTime)
		}
		written = append(written, f.Path)
	}
	return written, nil
}

// WriteFailure writes the diagnostic log carried by cause, if any, to the
// error log file. The returned error always contains cause; a write failure
// is joined to it and never replaces it.
func (w *Writer) WriteFailure(cause error) error {
	log, ok := remote.DiagnosticLog(cause)
	if !ok {
		return cause
	}
	if err := w.Prepare(); err != nil {
		return stderrors.Join(cause, err)
	}
	if err := w.writeFile(w.cfg.ErrorLogFile, log, 0o644); err != nil {
		return stderrors.Join(cause, err)
	}
	w.logger.Error(fmt.Sprintf("BUILD FAILED: See %s for details", w.cfg.ErrorLogFile),
		logfields.File(filepath.Join(w.cfg.Dir, w.cfg.ErrorLogFile)))
	return cause
}

func (w *Writer) writeFile(rel string, data []byte, mode fs.FileMode) error {
	target := filepath.Join(w.cfg.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.FileSystemError("failed to create directory").WithCause(err).WithContext("path", target).Build()
	}
	if err := os.WriteFile(target, data, mode); err != nil {
		return errors.FileSystemError("failed to write file").WithCause(err).WithContext("path", target).Build()
	}
	w.logger.Debug("Wrote file", logfields.Path(target), slog.String("size", humanize.Bytes(uint64(len(data)))))
	return nil
}
