package commands

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/compulim/remotebuild/internal/archive"
	"github.com/compulim/remotebuild/internal/config"
	"github.com/compulim/remotebuild/internal/events"
	"github.com/compulim/remotebuild/internal/history"
	"github.com/compulim/remotebuild/internal/logfields"
	"github.com/compulim/remotebuild/internal/metrics"
	"github.com/compulim/remotebuild/internal/output"
	"github.com/compulim/remotebuild/internal/progress"
	"github.com/compulim/remotebuild/internal/remote"
	"github.com/compulim/remotebuild/internal/transport"
)

// session holds everything that outlives a single build: the transport,
// history store, event publisher and metrics.
type session struct {
	cfg      *config.Config
	root     string
	logger   *slog.Logger
	clock    clockwork.Clock
	tr       *transport.Transport
	recorder *metrics.PrometheusRecorder
	store    *history.Store
	pub      events.Publisher
	out      *output.Writer
}

func newSession(cfg *config.Config, root string, logger *slog.Logger) (*session, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:      cfg,
		root:     abs,
		logger:   logger,
		clock:    clockwork.NewRealClock(),
		recorder: metrics.NewPrometheusRecorder(nil),
		pub:      events.NoopPublisher{},
		out:      output.New(cfg.Output, logger).Protect(abs),
	}
	if err := s.out.CheckClean(); err != nil {
		return nil, err
	}
	if s.tr, err = newTransport(cfg, logger, s.recorder); err != nil {
		return nil, err
	}
	if cfg.History.Path != "" {
		if s.store, err = history.Open(cfg.History.Path); err != nil {
			return nil, err
		}
	}
	if cfg.Events.URL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.URL, cfg.Events.Subject)
		if err != nil {
			logger.Warn("Build events disabled", logfields.Error(err))
		} else {
			s.pub = pub
		}
	}
	return s, nil
}

func (s *session) Close() error {
	var errs []error
	if err := s.pub.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// archiveOptions excludes the output directory and the history database
// when they live inside the project.
func (s *session) archiveOptions() archive.Options {
	opts := archive.Options{
		RootFolder:  s.cfg.Archive.RootFolder,
		ExcludeDirs: s.cfg.Archive.ExcludeDirs,
		Exclude:     append([]string(nil), s.cfg.Archive.Exclude...),
		Logger:      s.logger,
	}
	switch rel, ok := s.relative(s.out.Dir()); {
	case ok && rel == ".":
		opts.Exclude = append(opts.Exclude, "/"+s.cfg.Output.LogFile, "/"+s.cfg.Output.ErrorLogFile)
	case ok:
		opts.Exclude = append(opts.Exclude, "/"+rel+"/")
	}
	if s.store != nil {
		if rel, ok := s.relative(filepath.Dir(s.cfg.History.Path)); ok && rel != "." {
			opts.Exclude = append(opts.Exclude, "/"+rel+"/")
		}
	}
	return opts
}

// relative returns p relative to the project root, or false when p is outside it.
func (s *session) relative(p string) (string, bool) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// build runs the whole workflow once and writes its results.
func (s *session) build(ctx context.Context) error {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)

	opts := remote.OptionsFromConfig(s.cfg)
	version, err := archive.DetectCordovaVersion(s.root)
	if err != nil {
		return err
	}
	if version != "" && version != opts.CordovaVersion {
		logger.Info("Using Cordova version from taco.json", "cordova_version", version)
		opts.CordovaVersion = version
	}

	observers := remote.MultiObserver{
		remote.LogObserver{Logger: logger},
		events.NewObserver(s.pub, runID, s.clock, logger),
	}
	if s.store != nil {
		err := s.store.StartRun(ctx, history.Run{
			ID:             runID,
			Host:           s.cfg.Address(),
			Configuration:  opts.Configuration,
			CordovaVersion: opts.CordovaVersion,
			StartedAt:      s.clock.Now(),
		})
		if err != nil {
			logger.Warn("Build history disabled for this run", logfields.Error(err))
		} else {
			observers = append(observers, history.NewObserver(ctx, s.store, runID, s.clock, logger))
		}
	}

	producer := archive.NewProducer(s.archiveOptions())
	body := producer.Stream(ctx, archive.Walk(s.root))
	reporter, err := progress.Start(progress.CompressionReport(producer.Files, logger),
		s.cfg.Progress.Interval.Duration(), progress.WithLogger(logger))
	if err != nil {
		_ = body.Close()
		_ = producer.Wait()
		return err
	}
	go func() {
		_ = producer.Wait()
		_ = reporter.Stop()
	}()

	logger.Info("Starting remote build",
		logfields.Host(s.cfg.Address()),
		logfields.Path(s.root),
		"configuration", opts.Configuration,
		"cordova_version", opts.CordovaVersion)

	client := remote.NewClient(s.tr, opts,
		remote.WithObserver(observers),
		remote.WithRecorder(s.recorder),
		remote.WithLogger(logger),
		remote.WithClock(s.clock),
	)
	out, runErr := client.Run(ctx, body)
	_ = body.Close()
	archiveErr := producer.Wait()
	_ = reporter.Stop()

	s.recordArchive(ctx, runID, producer, opts.CordovaVersion)
	defer s.flushMetrics()

	if archiveErr != nil && !stderrors.Is(archiveErr, io.ErrClosedPipe) && ctx.Err() == nil {
		// The upload failure is only a symptom of the broken stream.
		return archiveErr
	}
	if runErr != nil {
		return s.out.WriteFailure(runErr)
	}

	written, err := s.out.WriteOutcome(out)
	if err != nil {
		return err
	}
	logger.Info("Build succeeded", logfields.Path(s.out.Dir()), logfields.Files(int64(len(written))))
	return nil
}

func (s *session) recordArchive(ctx context.Context, runID string, p *archive.Producer, cordovaVersion string) {
	s.recorder.ObserveArchive(p.Files(), p.BytesWritten())
	s.logger.Debug("Archive finished",
		logfields.Files(p.Files()),
		slog.Int64(logfields.KeyBytes, p.BytesWritten()),
		logfields.Digest(p.Digest()))
	if s.store == nil {
		return
	}
	if err := s.store.SetArchive(context.WithoutCancel(ctx), runID, p.Files(), p.BytesWritten(), p.Digest(), cordovaVersion); err != nil {
		s.logger.Warn("Build history update failed", "op", "set archive", logfields.Error(err))
	}
}

func (s *session) flushMetrics() {
	if s.cfg.Metrics.Textfile == "" {
		return
	}
	if err := s.recorder.WriteTextfile(s.cfg.Metrics.Textfile); err != nil {
		s.logger.Warn("Failed to write metrics textfile", logfields.File(s.cfg.Metrics.Textfile), logfields.Error(err))
	}
}
