package commands

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/compulim/remotebuild/internal/config"
	ferrors "github.com/compulim/remotebuild/internal/foundation/errors"
	"github.com/compulim/remotebuild/internal/history"
	"github.com/compulim/remotebuild/internal/output"
	"github.com/compulim/remotebuild/internal/remote"
)

// fakeBuildService answers the four endpoints of the remote build service.
type fakeBuildService struct {
	mu       sync.Mutex
	query    url.Values
	body     []byte
	statuses []remote.BuildInfo
	polls    int
	artifact []byte
}

func (f *fakeBuildService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/cordova/build/tasks":
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.query, f.body = r.URL.Query(), data
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"buildNumber": 7}`)
	case r.URL.Path == "/cordova/build/tasks/7":
		f.mu.Lock()
		info := f.statuses[min(f.polls, len(f.statuses)-1)]
		f.polls++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	case r.URL.Path == "/cordova/build/7/download":
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(f.artifact)
	case r.URL.Path == "/cordova/build/tasks/7/log":
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "BUILD SUCCESSFUL\n")
	default:
		http.NotFound(w, r)
	}
}

func zipArtifact(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func tarNames(t *testing.T, gz []byte) []string {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(gz))
	require.NoError(t, err)
	tr := tar.NewReader(zr)
	var names []string
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return names
		}
		require.NoError(t, err)
		names = append(names, h.Name)
	}
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"taco.json":      `{"cordova-cli": "6.0.0"}`,
		"config.xml":     "<widget/>",
		"www/index.html": "<html/>",
		"bin/stale.apk":  "old",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func testConfig(t *testing.T, srv *httptest.Server) *config.Config {
	t.Helper()
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Host = host
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)
	cfg.PollInterval = config.Duration(5 * time.Millisecond)
	cfg.BuildTimeout = config.Duration(10 * time.Second)
	cfg.Progress.Interval = config.Duration(10 * time.Millisecond)
	cfg.Output.Dir = t.TempDir()
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "remotebuild.prom")
	return cfg
}

func TestSessionBuildWritesResults(t *testing.T) {
	svc := &fakeBuildService{
		statuses: []remote.BuildInfo{
			{Status: remote.StatusBuilding, Message: "Building"},
			{Status: remote.StatusComplete, Message: "Build complete"},
		},
		artifact: zipArtifact(t, "android-debug.apk", "apk-bytes"),
	}
	srv := newServer(t, svc)

	cfg := testConfig(t, srv)
	s, err := newSession(cfg, writeProject(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.build(context.Background()))

	svc.mu.Lock()
	query, body := svc.query, svc.body
	svc.mu.Unlock()
	require.Equal(t, "6.0.0", query.Get("vcordova"))
	require.Equal(t, "debug", query.Get("cfg"))

	names := tarNames(t, body)
	require.Contains(t, names, "cordova-app/www/index.html")
	require.Contains(t, names, "cordova-app/taco.json")
	for _, n := range names {
		require.False(t, strings.HasPrefix(n, "cordova-app/bin"), "excluded entry %s archived", n)
	}

	log, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "taco.log"))
	require.NoError(t, err)
	require.Equal(t, "BUILD SUCCESSFUL\n", string(log))
	apk, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "android-debug.apk"))
	require.NoError(t, err)
	require.Equal(t, "apk-bytes", string(apk))

	runs, err := s.store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "7", runs[0].Handle)
	require.Equal(t, "success", runs[0].Outcome)
	require.Equal(t, "6.0.0", runs[0].CordovaVersion)
	require.NotEmpty(t, runs[0].ArchiveDigest)

	evs, err := s.store.Events(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, evs, 2)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	require.Contains(t, string(prom), "remotebuild_build_outcomes_total")
}

func TestSessionBuildFailureWritesErrorLog(t *testing.T) {
	svc := &fakeBuildService{
		statuses: []remote.BuildInfo{{Status: remote.StatusError, Message: "Build failed"}},
	}
	srv := newServer(t, svc)

	cfg := testConfig(t, srv)
	s, err := newSession(cfg, writeProject(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer s.Close()

	err = s.build(context.Background())
	var bf *remote.BuildFailedError
	require.ErrorAs(t, err, &bf)

	data, readErr := os.ReadFile(filepath.Join(cfg.Output.Dir, "taco-error.log"))
	require.NoError(t, readErr)
	require.Equal(t, "BUILD SUCCESSFUL\n", string(data))

	runs, err := s.store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "failed", runs[0].Outcome)
}

func TestArchiveOptionsExcludeLocalState(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(root, "out")
	cfg.History.Path = filepath.Join(root, ".remotebuild", "history.db")

	s := &session{cfg: cfg, root: root, store: &history.Store{}}
	s.out = newTestWriter(cfg)
	opts := s.archiveOptions()
	require.Contains(t, opts.Exclude, "/out/")
	require.Contains(t, opts.Exclude, "/.remotebuild/")

	cfg.Output.Dir = root
	s.out = newTestWriter(cfg)
	opts = s.archiveOptions()
	require.Contains(t, opts.Exclude, "/taco.log")
	require.Contains(t, opts.Exclude, "/taco-error.log")
}

func newTestWriter(cfg *config.Config) *output.Writer {
	return output.New(cfg.Output, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewSessionRefusesCleaningProject(t *testing.T) {
	project := writeProject(t)
	for _, dir := range []string{project, filepath.Dir(project)} {
		cfg := config.Default()
		cfg.Host = "localhost"
		cfg.Output.Dir = dir
		cfg.Output.Clean = true

		_, err := newSession(cfg, project, slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.Error(t, err, dir)
		require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	}

	data, err := os.ReadFile(filepath.Join(project, "www", "index.html"))
	require.NoError(t, err)
	require.Equal(t, "<html/>", string(data))
}
