package commands

import (
	"context"
	stderrors "errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/compulim/remotebuild/internal/archive"
	"github.com/compulim/remotebuild/internal/config"
	"github.com/compulim/remotebuild/internal/foundation/errors"
	"github.com/compulim/remotebuild/internal/logfields"
	"github.com/compulim/remotebuild/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	BuildCmd
	Debounce    time.Duration `help:"Quiet period before a rebuild starts"`
	MetricsAddr string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address while watching"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if err := w.apply(cfg); err != nil {
		return err
	}
	if w.Debounce > 0 {
		cfg.Watch.Debounce = config.Duration(w.Debounce)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := newSession(cfg, w.Dir, g.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if rel, ok := s.relative(s.out.Dir()); ok && rel == "." {
		return errors.ValidationError("output directory must not be the watched project directory").
			WithContext("output", s.out.Dir()).Build()
	}

	excluded := archive.NewProducer(s.archiveOptions()).Excluded
	watcher, err := watch.New(s.root, watch.Options{
		Debounce: cfg.Watch.Debounce.Duration(),
		Excluded: excluded,
		Logger:   g.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if w.MetricsAddr != "" {
		srv := &http.Server{Addr: w.MetricsAddr, Handler: s.recorder.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				g.Logger.Error("Metrics server failed", logfields.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
		g.Logger.Info("Serving metrics", "addr", w.MetricsAddr)
	}

	if err := s.build(ctx); err != nil && ctx.Err() == nil {
		g.Logger.Error("Initial build failed", logfields.Error(err))
	}
	return watcher.Run(ctx, s.build)
}
