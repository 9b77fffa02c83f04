package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := newDebouncer(clock, 2*time.Second)
	require.Nil(t, d.fired())

	d.trigger()
	clock.Advance(time.Second)
	d.trigger()
	clock.Advance(1500 * time.Millisecond)

	select {
	case <-d.fired():
		t.Fatal("fired before quiet period elapsed")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case <-d.fired():
	case <-time.After(time.Second):
		t.Fatal("debouncer did not fire")
	}
	d.reset()
	require.Nil(t, d.fired())
}

func TestRelevantHonoursExclusions(t *testing.T) {
	root := t.TempDir()
	w := &Watcher{root: root, opts: Options{Excluded: func(rel string, _ bool) bool {
		return strings.HasPrefix(rel, "bin/") || rel == "bin"
	}}}

	cases := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write in tree", fsnotify.Event{Name: filepath.Join(root, "www", "index.html"), Op: fsnotify.Write}, true},
		{"excluded dir", fsnotify.Event{Name: filepath.Join(root, "bin", "app.apk"), Op: fsnotify.Create}, false},
		{"chmod only", fsnotify.Event{Name: filepath.Join(root, "config.xml"), Op: fsnotify.Chmod}, false},
		{"outside root", fsnotify.Event{Name: filepath.Join(filepath.Dir(root), "other"), Op: fsnotify.Write}, false},
		{"root itself", fsnotify.Event{Name: root, Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		if got := w.relevant(tc.ev); got != tc.want {
			t.Fatalf("%s: relevant=%v want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewRejectsNonPositiveDebounce(t *testing.T) {
	_, err := New(t.TempDir(), Options{})
	require.Error(t, err)
}

func TestRunRebuildsAfterChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "www"), 0o755))

	w, err := New(root, Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	builds := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			builds <- struct{}{}
			return nil
		})
	}()

	require.NoError(t, os.WriteFile(filepath.Join(root, "www", "index.html"), []byte("<html/>"), 0o644))

	select {
	case <-builds:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after change")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
