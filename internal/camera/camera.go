package camera

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/property"
)

// Property names owned by the camera itself. Hardware controls add one
// property each, named by asi.SnakeCase.
const (
	PropCameraID         = "camera_id"
	PropMaxWidth         = "max_width"
	PropMaxHeight        = "max_height"
	PropIsColor          = "is_color"
	PropBayerPattern     = "bayer_pattern"
	PropSupportedBins    = "supported_bins"
	PropSupportedFormats = "supported_video_formats"
	PropPixelSize        = "pixel_size"
	PropHasShutter       = "has_shutter"
	PropST4              = "st4"
	PropIsCooler         = "is_cooler"
	PropElecPerADU       = "elec_per_adu"
	PropBitDepth         = "bit_depth"

	PropAlias     = "ls_rand_id"
	PropWidth     = "width"
	PropHeight    = "height"
	PropBin       = "bin"
	PropImageType = "image_type"

	PropExposing       = "exposing"
	PropExposureStatus = "exposure_status"
	PropLastCapture    = "last_capture"
	PropCaptureCount   = "capture_count"
)

// DefaultStatusInterval is how often an exposure polls hardware status.
const DefaultStatusInterval = 50 * time.Millisecond

// ArtifactWriter persists an encoded capture and returns where it went.
// It never replaces an existing artifact; a taken name yields an error
// wrapping ErrArtifactExists.
type ArtifactWriter interface {
	WriteArtifact(name string, data []byte) (path string, err error)
}

// Sequencer supplies the first artifact sequence number for a camera so a
// restart does not overwrite earlier files. Sequences are kept per camera
// alias, the same key that separates artifact names.
type Sequencer interface {
	NextSequence(ctx context.Context, alias string) (int, error)
}

// Options configures Open.
type Options struct {
	// ID is the device id clients use. Required.
	ID string

	Artifacts      ArtifactWriter
	Sequencer      Sequencer
	StatusInterval time.Duration

	// OnChange receives every committed property change, outside any lock.
	OnChange func(changed []property.Property)

	// OnCapture receives the result of every exposure that got past
	// validation, including ones that failed to start.
	OnCapture func(Result)

	Logger Logger
}

// Camera is the state container for one opened camera.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Camera struct {
	sdk   asi.CameraSDK
	id    string
	hwID  int
	info  asi.CameraInfo
	store *property.Store
	log   Logger

	artifacts      ArtifactWriter
	statusInterval time.Duration
	onChange       func([]property.Property)
	onCapture      func(Result)

	// controls and controlNames are fixed after Open.
	controls     map[string]asi.ControlCaps
	controlNames []string

	// writeMu serializes client writes and exposure starts.
	writeMu sync.Mutex

	// mu guards the fields below.
	mu       sync.Mutex
	roi      asi.ROI
	active   *Exposure
	closed   bool
	seq      int
	captures int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open opens the camera at enumeration index, initialises it and builds its
// property store from the reported attributes and control capabilities.
func Open(ctx context.Context, sdk asi.CameraSDK, index int, opts Options) (*Camera, error) {
	info, err := sdk.CameraInfo(index)
	if err != nil {
		return nil, fmt.Errorf("camera: reading info for index %d: %w", index, err)
	}
	if err := sdk.Open(info.CameraID); err != nil {
		return nil, fmt.Errorf("camera: opening %q: %w", info.Name, err)
	}
	if err := sdk.Init(info.CameraID); err != nil {
		_ = sdk.Close(info.CameraID)
		return nil, fmt.Errorf("camera: initialising %q: %w", info.Name, err)
	}

	c := &Camera{
		sdk:            sdk,
		id:             opts.ID,
		hwID:           info.CameraID,
		info:           info,
		store:          property.NewStore(),
		log:            opts.Logger,
		artifacts:      opts.Artifacts,
		statusInterval: opts.StatusInterval,
		onChange:       opts.OnChange,
		onCapture:      opts.OnCapture,
		controls:       make(map[string]asi.ControlCaps),
		seq:            1,
	}
	if c.log == nil {
		c.log = noopLogger{}
	}
	if c.statusInterval <= 0 {
		c.statusInterval = DefaultStatusInterval
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := c.init(ctx, opts.Sequencer); err != nil {
		c.cancel()
		_ = sdk.Close(info.CameraID)
		return nil, err
	}
	return c, nil
}

func (c *Camera) init(ctx context.Context, seq Sequencer) error {
	alias := c.ensureAlias()

	n, err := c.sdk.NumControls(c.hwID)
	if err != nil {
		return fmt.Errorf("camera: counting controls: %w", err)
	}
	caps := make([]asi.ControlCaps, 0, n)
	for i := 0; i < n; i++ {
		cc, err := c.sdk.ControlCaps(c.hwID, i)
		if err != nil {
			return fmt.Errorf("camera: reading control %d: %w", i, err)
		}
		caps = append(caps, cc)
	}

	roi, err := c.sdk.ROIFormat(c.hwID)
	if err != nil {
		return fmt.Errorf("camera: reading ROI: %w", err)
	}
	c.roi = roi

	for _, d := range c.fixedDefinitions(alias) {
		if err := c.store.Define(d); err != nil {
			return fmt.Errorf("camera: %w", err)
		}
	}

	for _, cc := range caps {
		name := asi.SnakeCase(cc.Name)
		if _, err := c.store.Get(name); err == nil {
			c.log.Warn("control name clashes with a camera property, skipping", "control", cc.Name)
			continue
		}
		raw, _, err := c.sdk.ControlValue(c.hwID, cc.Type)
		if err != nil {
			c.log.Warn("reading initial control value failed, using default",
				"control", name, "error", err)
			raw = cc.DefaultValue
		}
		if err := c.store.Define(controlDefinition(name, cc, raw)); err != nil {
			return fmt.Errorf("camera: %w", err)
		}
		c.controls[name] = cc
		c.controlNames = append(c.controlNames, name)
		c.log.Debug("discovered control", "control", name, "writable", cc.Writable)
	}
	sort.Strings(c.controlNames)

	if seq != nil {
		next, err := seq.NextSequence(ctx, alias)
		if err != nil {
			c.log.Warn("reading capture sequence failed, starting at 1", "error", err)
		} else if next > 0 {
			c.seq = next
		}
	}

	c.log.Info("camera initialised",
		"name", c.info.Name,
		"controls", len(c.controlNames),
		"width", roi.Width,
		"height", roi.Height,
		"format", roi.Format.String(),
	)
	return nil
}

// ensureAlias returns the camera's flash id, writing a random one first if
// the camera has none.
func (c *Camera) ensureAlias() string {
	alias, err := c.sdk.CameraAlias(c.hwID)
	if err != nil {
		c.log.Warn("reading camera alias failed", "error", err)
	}
	if alias != "" {
		return alias
	}
	alias = newAlias()
	if err := c.sdk.SetCameraAlias(c.hwID, alias); err != nil {
		c.log.Warn("storing generated camera alias failed", "alias", alias, "error", err)
	}
	return alias
}

const aliasChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func newAlias() string {
	b := make([]byte, asi.AliasLength)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = aliasChars[int(b[i])%len(aliasChars)]
	}
	return string(b)
}

func checkAlias(v property.Value) error {
	if len(v.Str) > asi.AliasLength {
		return fmt.Errorf("at most %d characters", asi.AliasLength)
	}
	for i := 0; i < len(v.Str); i++ {
		ch := v.Str[i]
		if !(ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9') {
			return fmt.Errorf("only letters and digits allowed")
		}
	}
	return nil
}

func (c *Camera) fixedDefinitions(alias string) []property.Definition {
	info := c.info
	ro := func(name string, v property.Value) property.Definition {
		return property.Definition{Name: name, Value: v, Permission: property.ReadOnly}
	}

	bins := make([]string, 0, len(info.SupportedBins))
	for _, b := range info.SupportedBins {
		bins = append(bins, asi.FormatBin(b))
	}
	formats := make([]string, 0, len(info.SupportedFormats))
	for _, f := range info.SupportedFormats {
		formats = append(formats, f.String())
	}

	return []property.Definition{
		ro(PropCameraID, property.Int(int64(info.CameraID))),
		ro(PropMaxWidth, property.Int(int64(info.MaxWidth))),
		ro(PropMaxHeight, property.Int(int64(info.MaxHeight))),
		ro(PropIsColor, property.Bool(info.IsColor)),
		ro(PropBayerPattern, property.String(info.BayerPattern.String())),
		ro(PropSupportedBins, property.String(info.BinsString())),
		ro(PropSupportedFormats, property.String(info.FormatsString())),
		ro(PropPixelSize, property.Float(info.PixelSize)),
		ro(PropHasShutter, property.Bool(info.MechanicalShutter)),
		ro(PropST4, property.Bool(info.ST4Port)),
		ro(PropIsCooler, property.Bool(info.IsCooler)),
		ro(PropElecPerADU, property.Float(info.ElecPerADU)),
		ro(PropBitDepth, property.Int(int64(info.BitDepth))),

		{Name: PropAlias, Value: property.String(alias), Permission: property.ReadWrite, Check: checkAlias},
		{
			Name:       PropWidth,
			Value:      property.Int(int64(c.roi.Width)),
			Permission: property.ReadWrite,
			Bounds:     &property.Bounds{Min: 1, Max: float64(info.MaxWidth)},
		},
		{
			Name:       PropHeight,
			Value:      property.Int(int64(c.roi.Height)),
			Permission: property.ReadWrite,
			Bounds:     &property.Bounds{Min: 1, Max: float64(info.MaxHeight)},
		},
		{Name: PropBin, Value: property.String(asi.FormatBin(c.roi.Bin)), Permission: property.ReadWrite, Choices: bins},
		{Name: PropImageType, Value: property.String(c.roi.Format.String()), Permission: property.ReadWrite, Choices: formats},

		ro(PropExposing, property.Bool(false)),
		ro(PropExposureStatus, property.String(StateIdle.String())),
		ro(PropLastCapture, property.String("")),
		ro(PropCaptureCount, property.Int(0)),
	}
}

// controlDefinition maps one hardware control to a property. Temperature is
// reported in tenths of a degree and exposed as a float in °C.
func controlDefinition(name string, cc asi.ControlCaps, raw int64) property.Definition {
	d := property.Definition{
		Name:       name,
		Value:      controlValue(cc, raw),
		Permission: property.ReadOnly,
	}
	if cc.Type == asi.ControlTemperature {
		return d
	}
	if cc.Writable {
		d.Permission = property.ReadWrite
	}
	d.Bounds = &property.Bounds{Min: float64(cc.MinValue), Max: float64(cc.MaxValue)}
	return d
}

func controlValue(cc asi.ControlCaps, raw int64) property.Value {
	if cc.Type == asi.ControlTemperature {
		return property.Float(float64(raw) / 10)
	}
	return property.Int(raw)
}

// ID returns the device id.
func (c *Camera) ID() string { return c.id }

// Name returns the camera model name.
func (c *Camera) Name() string { return c.info.Name }

// HardwareID returns the SDK camera id.
func (c *Camera) HardwareID() int { return c.hwID }

// Info returns the fixed camera attributes.
func (c *Camera) Info() asi.CameraInfo { return c.info }

// ROI returns the cached region of interest.
func (c *Camera) ROI() asi.ROI {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roi
}

// Properties returns a snapshot of every property.
func (c *Camera) Properties() []property.Property {
	return c.store.Snapshot()
}

// Property returns one property.
func (c *Camera) Property(name string) (property.Property, error) {
	return c.store.Get(name)
}

// Active returns the in-flight exposure, if any.
func (c *Camera) Active() (Exposure, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Exposure{}, false
	}
	return *c.active, true
}

func (c *Camera) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// set commits driver-owned values and notifies observers of what changed.
func (c *Camera) set(values map[string]property.Value) {
	var changed []property.Property
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ok, err := c.store.Set(name, values[name])
		if err != nil {
			c.log.Error("committing property failed", "property", name, "error", err)
			continue
		}
		if ok {
			p, _ := c.store.Get(name)
			changed = append(changed, p)
		}
	}
	c.notify(changed)
}

func (c *Camera) notify(changed []property.Property) {
	if len(changed) > 0 && c.onChange != nil {
		c.onChange(changed)
	}
}

// Close aborts an in-flight exposure, waits for it, and releases the
// hardware handle. Calling Close more than once is a no-op.
func (c *Camera) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.wg.Wait()

	if err := c.sdk.Close(c.hwID); err != nil {
		return fmt.Errorf("camera: closing %q: %w", c.info.Name, err)
	}
	c.log.Info("camera closed", "name", c.info.Name)
	return nil
}
