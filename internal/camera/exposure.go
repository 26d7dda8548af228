package camera

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/fits"
	"github.com/nerrad567/lightspeed-asi/internal/property"
)

// State is the exposure state published in the exposure_status property.
type State int

// Exposure states. Success, Failed and Aborted are terminal.
const (
	StateIdle State = iota
	StateExposing
	StateDownloading
	StateSuccess
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateExposing:
		return "EXPOSING"
	case StateDownloading:
		return "DOWNLOADING"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Exposure records one capture request. It lives until the capture ends.
type Exposure struct {
	ID          string          `json:"id"`
	DeviceID    string          `json:"device_id"`
	DeviceName  string          `json:"device_name"`
	DeviceAlias string          `json:"device_alias,omitempty"`
	Length      float64         `json:"length"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Bin         int             `json:"bin"`
	Format      asi.ImageFormat `json:"format"`
	BufferSize  int             `json:"buffer_size"`
	StartedAt   time.Time       `json:"started_at"`
}

// Result is what an exposure ended with.
type Result struct {
	Exposure Exposure
	State    State

	// Sequence and File are set when an artifact was written.
	Sequence int
	File     string

	// Err is why a capture failed or was aborted.
	Err error

	// ArtifactErr reports a successful capture whose file could not be
	// encoded or written.
	ArtifactErr error

	FinishedAt time.Time
}

// Expose starts a capture of length seconds with the cached ROI. Starting
// is synchronous so hardware errors reach the caller; the rest runs in the
// background and ends with a Result passed to Options.OnCapture.
//
// Errors:
//   - property.ErrInvalidValue for a non-positive or out-of-range length
//   - ErrCaptureInProgress if an exposure is already in flight
//   - ErrUnsupportedFormat when the ROI format is RGB24
//   - a wrapped *asi.HardwareError if the hardware refuses to start
func (c *Camera) Expose(ctx context.Context, length float64) (Exposure, error) {
	if math.IsNaN(length) || math.IsInf(length, 0) || length <= 0 {
		return Exposure{}, fmt.Errorf("%w: exposure length %v", property.ErrInvalidValue, length)
	}
	us := int64(math.Round(length * 1e6))
	expName, expCaps, hasExpControl := c.exposureControl()
	if hasExpControl && (us < expCaps.MinValue || us > expCaps.MaxValue) {
		return Exposure{}, fmt.Errorf("%w: exposure length %vs outside [%d, %d]µs",
			property.ErrInvalidValue, length, expCaps.MinValue, expCaps.MaxValue)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return Exposure{}, err
	}

	var alias string
	if p, err := c.store.Get(PropAlias); err == nil {
		alias = p.Value.Str
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Exposure{}, ErrClosed
	}
	if c.active != nil {
		c.mu.Unlock()
		return Exposure{}, ErrCaptureInProgress
	}
	roi := c.roi
	if roi.Format.BytesPerPixel() > 2 {
		c.mu.Unlock()
		return Exposure{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, roi.Format)
	}
	exp := Exposure{
		ID:          uuid.NewString(),
		DeviceID:    c.id,
		DeviceName:  c.info.Name,
		DeviceAlias: alias,
		Length:      length,
		Width:       roi.Width,
		Height:      roi.Height,
		Bin:         roi.Bin,
		Format:      roi.Format,
		BufferSize:  roi.BufferSize(),
		StartedAt:   time.Now().UTC(),
	}
	c.active = &exp
	c.mu.Unlock()

	c.set(map[string]property.Value{
		PropExposing:       property.Bool(true),
		PropExposureStatus: property.String(StateExposing.String()),
	})

	if err := c.sdk.SetControlValue(c.hwID, asi.ControlExposure, us, false); err != nil {
		err = fmt.Errorf("camera: set exposure length: %w", err)
		c.finish(Result{Exposure: exp, State: StateFailed, Err: err})
		return Exposure{}, err
	}
	if hasExpControl {
		c.set(map[string]property.Value{expName: property.Int(us)})
	}

	if err := c.sdk.StartExposure(c.hwID, false); err != nil {
		err = fmt.Errorf("camera: start exposure: %w", err)
		c.finish(Result{Exposure: exp, State: StateFailed, Err: err})
		return Exposure{}, err
	}

	c.log.Info("exposure started",
		"exposure_id", exp.ID,
		"length", length,
		"width", exp.Width,
		"height", exp.Height,
		"format", exp.Format.String(),
	)

	c.wg.Add(1)
	go c.runExposure(exp)

	return exp, nil
}

func (c *Camera) exposureControl() (string, asi.ControlCaps, bool) {
	for name, cc := range c.controls {
		if cc.Type == asi.ControlExposure {
			return name, cc, true
		}
	}
	return "", asi.ControlCaps{}, false
}

// runExposure polls the hardware until the exposure ends, then downloads,
// encodes and persists it. It holds no lock while waiting on hardware.
func (c *Camera) runExposure(exp Exposure) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.statusInterval)
	defer ticker.Stop()

	var status asi.ExposureStatus
	for {
		var err error
		status, err = c.sdk.ExposureStatus(c.hwID)
		if err != nil {
			c.finish(Result{Exposure: exp, State: StateFailed, Err: fmt.Errorf("camera: exposure status: %w", err)})
			return
		}
		if status != asi.ExposureWorking {
			break
		}

		select {
		case <-c.ctx.Done():
			if err := c.sdk.StopExposure(c.hwID); err != nil {
				c.log.Warn("stopping exposure failed", "exposure_id", exp.ID, "error", err)
			}
			c.finish(Result{Exposure: exp, State: StateAborted, Err: ErrAborted})
			return
		case <-ticker.C:
		}
	}

	if status != asi.ExposureSuccess {
		c.finish(Result{
			Exposure: exp,
			State:    StateFailed,
			Err:      fmt.Errorf("%w: hardware reported %s", ErrExposureFailed, status),
		})
		return
	}

	c.set(map[string]property.Value{PropExposureStatus: property.String(StateDownloading.String())})

	buf := make([]byte, exp.BufferSize)
	if err := c.sdk.DownloadExposure(c.hwID, buf); err != nil {
		c.finish(Result{Exposure: exp, State: StateFailed, Err: fmt.Errorf("camera: download: %w", err)})
		return
	}

	c.set(map[string]property.Value{PropExposureStatus: property.String(StateSuccess.String())})

	res := Result{Exposure: exp, State: StateSuccess}
	res.Sequence, res.File, res.ArtifactErr = c.persist(exp, buf)
	c.finish(res)
}

// persist encodes buf and hands it to the artifact writer.
func (c *Camera) persist(exp Exposure, buf []byte) (int, string, error) {
	depth := fits.Depth8
	if exp.Format.Is16Bit() {
		depth = fits.Depth16
	}
	data, err := fits.Encode(buf, exp.Width, exp.Height, depth)
	if err != nil {
		c.log.Error("encoding capture failed", "exposure_id", exp.ID, "error", err)
		return 0, "", err
	}
	if c.artifacts == nil {
		c.log.Warn("no artifact writer configured, capture discarded", "exposure_id", exp.ID)
		return 0, "", nil
	}

	for attempt := 1; ; attempt++ {
		c.mu.Lock()
		seq := c.seq
		c.seq++
		c.mu.Unlock()

		name := ArtifactName(exp.DeviceName, exp.DeviceAlias, seq)
		path, err := c.artifacts.WriteArtifact(name, data)
		if err == nil {
			return seq, path, nil
		}
		if errors.Is(err, ErrArtifactExists) && attempt < maxArtifactAttempts {
			c.log.Warn("capture name taken, trying next sequence", "exposure_id", exp.ID, "file", name)
			continue
		}
		c.log.Error("writing capture failed", "exposure_id", exp.ID, "error", err)
		return seq, "", fmt.Errorf("camera: writing artifact: %w", err)
	}
}

// maxArtifactAttempts bounds how many taken sequence numbers persist skips.
const maxArtifactAttempts = 100

// finish publishes the terminal state, frees the camera for the next
// exposure and reports the result.
func (c *Camera) finish(res Result) {
	res.FinishedAt = time.Now().UTC()

	values := map[string]property.Value{
		PropExposing:       property.Bool(false),
		PropExposureStatus: property.String(res.State.String()),
	}
	if res.State == StateSuccess {
		c.mu.Lock()
		c.captures++
		values[PropCaptureCount] = property.Int(c.captures)
		c.mu.Unlock()
		if res.File != "" {
			values[PropLastCapture] = property.String(res.File)
		}
	}
	c.set(values)

	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()

	switch res.State {
	case StateSuccess:
		c.log.Info("exposure complete", "exposure_id", res.Exposure.ID, "file", res.File)
	case StateAborted:
		c.log.Warn("exposure aborted", "exposure_id", res.Exposure.ID)
	default:
		c.log.Error("exposure failed", "exposure_id", res.Exposure.ID, "error", res.Err)
	}

	if c.onCapture != nil {
		c.onCapture(res)
	}
}

// ArtifactName returns the file name for a capture:
// zwo-<name>-<alias>-<seq>.fits, or zwo-<name>-<seq>.fits for a camera
// without an alias. The alias keeps two cameras of one model apart.
// Characters outside [A-Za-z0-9._-] become underscores.
func ArtifactName(deviceName, alias string, seq int) string {
	if alias == "" {
		return fmt.Sprintf("zwo-%s-%03d.fits", safeName(deviceName), seq)
	}
	return fmt.Sprintf("zwo-%s-%s-%03d.fits", safeName(deviceName), safeName(alias), seq)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
