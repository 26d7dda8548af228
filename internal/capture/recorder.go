package capture

import (
	"context"
	"time"

	"github.com/nerrad567/lightspeed-asi/internal/camera"
	"github.com/nerrad567/lightspeed-asi/internal/property"
)

const recordTimeout = 5 * time.Second

// Logger defines the logging interface used by Recorder.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes a history row for every finished exposure.
type Recorder struct {
	repo Repository
	log  Logger
}

// NewRecorder creates a Recorder writing to repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, log: noopLogger{}}
}

// SetLogger sets the logger.
func (r *Recorder) SetLogger(l Logger) {
	if l != nil {
		r.log = l
	}
}

// PropertiesChanged is a no-op; history only tracks captures.
func (r *Recorder) PropertiesChanged(string, []property.Property) {}

// CaptureFinished persists res. Failures are logged, never returned, so a
// broken database does not affect the camera.
func (r *Recorder) CaptureFinished(res camera.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	rec := FromResult(res)
	if err := r.repo.Record(ctx, rec); err != nil {
		r.log.Error("recording capture failed", "exposure_id", rec.ID, "error", err)
		return
	}
	r.log.Info("capture recorded", "exposure_id", rec.ID, "state", rec.State, "file", rec.File)
}
