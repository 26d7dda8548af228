package capture

import (
	"time"

	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/camera"
)

// Record is one row of capture history.
type Record struct {
	ID            string    `json:"id"`
	DeviceID      string    `json:"device_id"`
	DeviceName    string    `json:"device_name"`
	DeviceAlias   string    `json:"device_alias,omitempty"`
	Sequence      int       `json:"sequence,omitempty"`
	File          string    `json:"file,omitempty"`
	State         string    `json:"state"`
	Length        float64   `json:"length"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	Bin           int       `json:"bin"`
	Format        string    `json:"format"`
	Error         string    `json:"error,omitempty"`
	ArtifactError string    `json:"artifact_error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// FromResult converts a finished exposure. Hardware failures are stored
// by kind so vendor codes never reach clients.
func FromResult(res camera.Result) Record {
	exp := res.Exposure
	return Record{
		ID:            exp.ID,
		DeviceID:      exp.DeviceID,
		DeviceName:    exp.DeviceName,
		DeviceAlias:   exp.DeviceAlias,
		Sequence:      res.Sequence,
		File:          res.File,
		State:         res.State.String(),
		Length:        exp.Length,
		Width:         exp.Width,
		Height:        exp.Height,
		Bin:           exp.Bin,
		Format:        exp.Format.String(),
		Error:         ErrorText(res.Err),
		ArtifactError: ErrorText(res.ArtifactErr),
		StartedAt:     exp.StartedAt,
		FinishedAt:    res.FinishedAt,
	}
}

// ErrorText renders err for clients, reducing hardware errors to their kind.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	if kind := asi.Kind(err); kind != nil {
		return kind.Error()
	}
	return err.Error()
}
