package progress

import (
	"log/slog"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// CompressionMessage formats the archive progress line, e.g. "Compressing 1,234 files".
func CompressionMessage(files int64) string {
	return printer.Sprintf("Compressing %d files", files)
}

// Deduper passes a message through only when it differs from the previous one.
type Deduper struct {
	mu   sync.Mutex
	last string
	seen bool
}

// Changed records msg and reports whether it differs from the last recorded value.
func (d *Deduper) Changed(msg string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen && d.last == msg {
		return false
	}
	d.last, d.seen = msg, true
	return true
}

// CompressionReport returns a report function that logs the file count read
// from files whenever the formatted message changes. It never unschedules.
func CompressionReport(files func() int64, logger *slog.Logger) func() bool {
	if logger == nil {
		logger = slog.Default()
	}
	var d Deduper
	return func() bool {
		if msg := CompressionMessage(files()); d.Changed(msg) {
			logger.Info(msg)
		}
		return true
	}
}
