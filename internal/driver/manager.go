package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/camera"
	"github.com/nerrad567/lightspeed-asi/internal/property"
	"github.com/nerrad567/lightspeed-asi/internal/wheel"
)

const (
	// DefaultPollInterval is how often devices are refreshed from hardware.
	DefaultPollInterval = time.Second

	openConcurrency = 4
	eventBuffer     = 256
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Manager. A nil SDK disables that family.
type Options struct {
	CameraSDK asi.CameraSDK
	WheelSDK  asi.WheelSDK

	CameraPoll time.Duration
	WheelPoll  time.Duration

	// StatusInterval is the exposure status poll period.
	StatusInterval time.Duration

	Artifacts camera.ArtifactWriter
	Sequencer camera.Sequencer
}

type event struct {
	deviceID string
	changed  []property.Property
	result   *camera.Result
}

// Manager owns every opened device, polls them and fans their events out
// to observers.
//
// Thread Safety:
//   - All methods are safe for concurrent use once Start has returned.
//   - AddObserver and SetLogger must be called before Start.
type Manager struct {
	opts      Options
	logger    Logger
	observers []Observer

	mu      sync.RWMutex
	devices map[string]Device
	order   []string
	started bool
	closed  bool

	events     chan event
	dispatchWG sync.WaitGroup

	pollCancel context.CancelFunc
	pollWG     sync.WaitGroup
}

// NewManager creates a Manager. Nothing is opened until Start.
func NewManager(opts Options) *Manager {
	if opts.CameraPoll <= 0 {
		opts.CameraPoll = DefaultPollInterval
	}
	if opts.WheelPoll <= 0 {
		opts.WheelPoll = DefaultPollInterval
	}
	return &Manager{
		opts:    opts,
		logger:  noopLogger{},
		devices: make(map[string]Device),
		events:  make(chan event, eventBuffer),
	}
}

// SetLogger sets the logger for the manager and the devices it opens.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// AddObserver registers o for property and capture events.
func (m *Manager) AddObserver(o Observer) {
	m.observers = append(m.observers, o)
}

// Start enumerates and opens every device concurrently, then starts
// polling. A device that fails to open is logged and skipped. Start
// returns an error only if ctx ends first or Start was already called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return fmt.Errorf("driver: manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.dispatchWG.Add(1)
	go m.dispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(openConcurrency)

	var mu sync.Mutex
	var opened []Device
	add := func(d Device) {
		mu.Lock()
		opened = append(opened, d)
		mu.Unlock()
	}

	for _, index := range m.cameraIndexes() {
		index := index
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := m.openCamera(gctx, index)
			if err != nil {
				m.logger.Error("opening camera failed", "index", index, "error", err)
				return nil
			}
			add(d)
			return nil
		})
	}
	for _, index := range m.wheelIndexes() {
		index := index
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := m.openWheel(gctx, index)
			if err != nil {
				m.logger.Error("opening filter wheel failed", "index", index, "error", err)
				return nil
			}
			add(d)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, d := range opened {
			_ = d.Close()
		}
		return fmt.Errorf("driver: opening devices: %w", err)
	}

	sort.Slice(opened, func(i, j int) bool {
		if opened[i].Kind() != opened[j].Kind() {
			return opened[i].Kind() < opened[j].Kind()
		}
		return opened[i].Name() < opened[j].Name()
	})

	pollCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.pollCancel = cancel
	for _, d := range opened {
		m.devices[d.ID()] = d
		m.order = append(m.order, d.ID())
	}
	m.mu.Unlock()

	for _, d := range opened {
		interval := m.opts.CameraPoll
		if d.Kind() == FamilyWheel {
			interval = m.opts.WheelPoll
		}
		m.pollWG.Add(1)
		go m.poll(pollCtx, d, interval)
	}

	m.logger.Info("devices opened", "count", len(opened))
	return nil
}

// cameraIndexes returns the enumeration indexes to open, skipping any
// index whose camera id was already seen.
func (m *Manager) cameraIndexes() []int {
	if m.opts.CameraSDK == nil {
		return nil
	}
	seen := make(map[int]bool)
	var indexes []int
	for i := 0; i < m.opts.CameraSDK.NumCameras(); i++ {
		info, err := m.opts.CameraSDK.CameraInfo(i)
		if err != nil {
			m.logger.Warn("reading camera info failed", "index", i, "error", err)
			continue
		}
		if seen[info.CameraID] {
			m.logger.Warn("duplicate camera id, skipping", "index", i, "camera_id", info.CameraID)
			continue
		}
		seen[info.CameraID] = true
		indexes = append(indexes, i)
	}
	return indexes
}

func (m *Manager) wheelIndexes() []int {
	if m.opts.WheelSDK == nil {
		return nil
	}
	seen := make(map[int]bool)
	var indexes []int
	for i := 0; i < m.opts.WheelSDK.NumWheels(); i++ {
		id, err := m.opts.WheelSDK.WheelID(i)
		if err != nil {
			m.logger.Warn("reading wheel id failed", "index", i, "error", err)
			continue
		}
		if seen[id] {
			m.logger.Warn("duplicate wheel id, skipping", "index", i, "wheel_id", id)
			continue
		}
		seen[id] = true
		indexes = append(indexes, i)
	}
	return indexes
}

func (m *Manager) openCamera(ctx context.Context, index int) (Device, error) {
	id := uuid.NewString()
	cam, err := camera.Open(ctx, m.opts.CameraSDK, index, camera.Options{
		ID:             id,
		Artifacts:      m.opts.Artifacts,
		Sequencer:      m.opts.Sequencer,
		StatusInterval: m.opts.StatusInterval,
		OnChange:       m.changeHandler(id),
		OnCapture: func(res camera.Result) {
			m.events <- event{deviceID: id, result: &res}
		},
		Logger: m.logger,
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("camera opened", "device_id", id, "name", cam.Name(), "index", index)
	return cameraDevice{cam}, nil
}

func (m *Manager) openWheel(ctx context.Context, index int) (Device, error) {
	id := uuid.NewString()
	w, err := wheel.Open(ctx, m.opts.WheelSDK, index, wheel.Options{
		ID:       id,
		OnChange: m.changeHandler(id),
		Logger:   m.logger,
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("filter wheel opened", "device_id", id, "name", w.Name(), "index", index)
	return wheelDevice{w}, nil
}

func (m *Manager) changeHandler(id string) func([]property.Property) {
	return func(changed []property.Property) {
		m.events <- event{deviceID: id, changed: changed}
	}
}

// dispatch delivers events to observers until the channel is closed.
func (m *Manager) dispatch() {
	defer m.dispatchWG.Done()
	for ev := range m.events {
		for _, o := range m.observers {
			m.deliver(o, ev)
		}
	}
}

func (m *Manager) deliver(o Observer, ev event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("observer panic recovered", "device_id", ev.deviceID, "panic", r)
		}
	}()
	if ev.result != nil {
		o.CaptureFinished(*ev.result)
		return
	}
	o.PropertiesChanged(ev.deviceID, ev.changed)
}

func (m *Manager) poll(ctx context.Context, d Device, interval time.Duration) {
	defer m.pollWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("refreshing device failed", "device_id", d.ID(), "name", d.Name(), "error", err)
		}
	}
}

// Devices returns a snapshot of every device, cameras first.
func (m *Manager) Devices() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.order))
	for _, id := range m.order {
		infos = append(infos, InfoOf(m.devices[id]))
	}
	return infos
}

// Get returns the device with id.
func (m *Manager) Get(id string) (Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	d, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// SetProperty writes one property on device id. The value is parsed
// according to the property's kind.
func (m *Manager) SetProperty(ctx context.Context, id, name, value string) error {
	d, err := m.Get(id)
	if err != nil {
		return err
	}
	return d.UpdateProperty(ctx, name, value)
}

// Expose starts a capture of length seconds on camera id.
func (m *Manager) Expose(ctx context.Context, id string, length float64) (camera.Exposure, error) {
	d, err := m.Get(id)
	if err != nil {
		return camera.Exposure{}, err
	}
	cam, ok := d.(cameraDevice)
	if !ok {
		return camera.Exposure{}, fmt.Errorf("%w: expose on %s", ErrNotSupported, d.Kind())
	}
	return cam.Expose(ctx, length)
}

// Calibrate starts calibration of filter wheel id.
func (m *Manager) Calibrate(ctx context.Context, id string) error {
	d, err := m.Get(id)
	if err != nil {
		return err
	}
	w, ok := d.(wheelDevice)
	if !ok {
		return fmt.Errorf("%w: calibrate on %s", ErrNotSupported, d.Kind())
	}
	return w.Calibrate(ctx)
}

// Close stops polling, closes every device (aborting in-flight captures
// and waiting for them) and then drains pending events to observers.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	cancel := m.pollCancel
	devices := make([]Device, 0, len(m.order))
	for _, id := range m.order {
		devices = append(devices, m.devices[id])
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.pollWG.Wait()

	var failed int
	for _, d := range devices {
		if err := d.Close(); err != nil {
			failed++
			m.logger.Error("closing device failed", "device_id", d.ID(), "name", d.Name(), "error", err)
		}
	}

	if started {
		close(m.events)
		m.dispatchWG.Wait()
	}

	m.logger.Info("devices closed", "count", len(devices), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("driver: %d of %d devices failed to close", failed, len(devices))
	}
	return nil
}
