package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStatus     = "status"
	KeyMessage    = "remote_message"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyHost       = "host"
	KeyMethod     = "method"
	KeyURL        = "url"
	KeyStatusCode = "status_code"
	KeyRequestID  = "request_id"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyFiles      = "files"
	KeyBytes      = "bytes"
	KeyDigest     = "digest"
	KeyAttempt    = "attempt"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr        { return slog.String(KeyBuildID, id) }
func Status(s string) slog.Attr          { return slog.String(KeyStatus, s) }
func Message(m string) slog.Attr         { return slog.String(KeyMessage, m) }
func Stage(name string) slog.Attr        { return slog.String(KeyStage, name) }
func Host(h string) slog.Attr            { return slog.String(KeyHost, h) }
func Method(m string) slog.Attr          { return slog.String(KeyMethod, m) }
func URL(u string) slog.Attr             { return slog.String(KeyURL, u) }
func StatusCode(code int) slog.Attr      { return slog.Int(KeyStatusCode, code) }
func RequestID(id string) slog.Attr      { return slog.String(KeyRequestID, id) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func File(f string) slog.Attr            { return slog.String(KeyFile, f) }
func Files(n int64) slog.Attr            { return slog.Int64(KeyFiles, n) }
func Bytes(n int) slog.Attr              { return slog.Int(KeyBytes, n) }
func Digest(d string) slog.Attr          { return slog.String(KeyDigest, d) }
func Attempt(n int) slog.Attr            { return slog.Int(KeyAttempt, n) }
func Duration(d time.Duration) slog.Attr { return slog.Int64(KeyDurationMS, d.Milliseconds()) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
