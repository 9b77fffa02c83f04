package remote

import (
	"log/slog"

	"github.com/compulim/remotebuild/internal/logfields"
)

// Observer is notified of build lifecycle events. Calls are made from the
// goroutine running the build, in observation order.
type Observer interface {
	OnSubmitted(h Handle)
	OnStatus(h Handle, info BuildInfo)
	OnCompleted(h Handle, out *Outcome)
	OnFailed(h Handle, err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) OnSubmitted(Handle)           {}
func (NopObserver) OnStatus(Handle, BuildInfo)   {}
func (NopObserver) OnCompleted(Handle, *Outcome) {}
func (NopObserver) OnFailed(Handle, error)       {}

// MultiObserver fans notifications out to every member in order.
type MultiObserver []Observer

func (m MultiObserver) OnSubmitted(h Handle) {
	for _, o := range m {
		o.OnSubmitted(h)
	}
}

func (m MultiObserver) OnStatus(h Handle, info BuildInfo) {
	for _, o := range m {
		o.OnStatus(h, info)
	}
}

func (m MultiObserver) OnCompleted(h Handle, out *Outcome) {
	for _, o := range m {
		o.OnCompleted(h, out)
	}
}

func (m MultiObserver) OnFailed(h Handle, err error) {
	for _, o := range m {
		o.OnFailed(h, err)
	}
}

// LogObserver writes lifecycle events to a slog.Logger.
type LogObserver struct {
	Logger *slog.Logger
}

func (l LogObserver) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l LogObserver) OnSubmitted(h Handle) {
	l.logger().Info("Build submitted", logfields.BuildID(string(h)))
}

func (l LogObserver) OnStatus(h Handle, info BuildInfo) {
	l.logger().Info("remotebuild: "+info.Message,
		logfields.BuildID(string(h)),
		logfields.Status(string(info.Status)))
}

func (l LogObserver) OnCompleted(h Handle, out *Outcome) {
	l.logger().Info("Build complete",
		logfields.BuildID(string(h)),
		logfields.Bytes(len(out.Artifact)))
}

func (l LogObserver) OnFailed(h Handle, err error) {
	l.logger().Error("Build failed",
		logfields.BuildID(string(h)),
		logfields.Error(err))
}
