// Package wheel owns one EFW filter wheel and its property store.
//
// It follows the same discipline as package camera: reads are served from
// the store, client writes go to the hardware first, and Refresh commits
// hardware readings with compare-and-set. Calibration runs in the
// background; the wheel reports position -1 until it settles.
package wheel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/property"
)

// Property names.
const (
	PropWheelID        = "wheel_id"
	PropAvailableSlots = "available_slots"
	PropActualSlot     = "actual_slot"
	PropDirection      = "direction" // true when the wheel only turns one way
	PropMoving         = "moving"
	PropCalibrating    = "calibrating"
)

// DefaultSettleInterval is how often calibration polls the position.
const DefaultSettleInterval = 100 * time.Millisecond

var (
	// ErrClosed is returned for any operation after Close.
	ErrClosed = errors.New("wheel: closed")

	// ErrCalibrationInProgress is returned when calibration is already running.
	ErrCalibrationInProgress = errors.New("wheel: calibration in progress")
)

// Logger defines the logging interface used by a Wheel.
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

// Options configures Open.
type Options struct {
	ID             string
	SettleInterval time.Duration
	OnChange       func(changed []property.Property)
	Logger         Logger
}

// Wheel is the state container for one opened filter wheel.
type Wheel struct {
	sdk      asi.WheelSDK
	id       string
	hwID     int
	info     asi.WheelInfo
	store    *property.Store
	log      Logger
	settle   time.Duration
	onChange func([]property.Property)

	writeMu sync.Mutex

	mu          sync.Mutex
	closed      bool
	calibrating bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open opens the wheel at enumeration index and builds its properties.
func Open(ctx context.Context, sdk asi.WheelSDK, index int, opts Options) (*Wheel, error) {
	hwID, err := sdk.WheelID(index)
	if err != nil {
		return nil, fmt.Errorf("wheel: reading id for index %d: %w", index, err)
	}
	if err := sdk.Open(hwID); err != nil {
		return nil, fmt.Errorf("wheel: opening %d: %w", hwID, err)
	}

	w := &Wheel{
		sdk:      sdk,
		id:       opts.ID,
		hwID:     hwID,
		store:    property.NewStore(),
		log:      opts.Logger,
		settle:   opts.SettleInterval,
		onChange: opts.OnChange,
	}
	if w.log == nil {
		w.log = noopLogger{}
	}
	if w.settle <= 0 {
		w.settle = DefaultSettleInterval
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	if err := w.init(); err != nil {
		w.cancel()
		_ = sdk.Close(hwID)
		return nil, err
	}
	return w, nil
}

func (w *Wheel) init() error {
	info, err := w.sdk.Info(w.hwID)
	if err != nil {
		return fmt.Errorf("wheel: reading info: %w", err)
	}
	if info.SlotNum < 1 {
		return fmt.Errorf("wheel: %q reports %d slots", info.Name, info.SlotNum)
	}
	w.info = info

	pos, err := w.sdk.Position(w.hwID)
	if err != nil {
		return fmt.Errorf("wheel: reading position: %w", err)
	}
	uni, err := w.sdk.Direction(w.hwID)
	if err != nil {
		return fmt.Errorf("wheel: reading direction: %w", err)
	}

	slot := pos
	if slot < 0 {
		slot = 0
	}
	defs := []property.Definition{
		{Name: PropWheelID, Value: property.Int(int64(info.ID)), Permission: property.ReadOnly},
		{Name: PropAvailableSlots, Value: property.Int(int64(info.SlotNum)), Permission: property.ReadOnly},
		{
			Name:       PropActualSlot,
			Value:      property.Int(int64(slot)),
			Permission: property.ReadWrite,
			Bounds:     &property.Bounds{Min: 0, Max: float64(info.SlotNum - 1)},
		},
		{Name: PropDirection, Value: property.Bool(uni), Permission: property.ReadWrite},
		{Name: PropMoving, Value: property.Bool(pos < 0), Permission: property.ReadOnly},
		{Name: PropCalibrating, Value: property.Bool(false), Permission: property.ReadOnly},
	}
	for _, d := range defs {
		if err := w.store.Define(d); err != nil {
			return fmt.Errorf("wheel: %w", err)
		}
	}

	w.log.Info("filter wheel initialised", "name", info.Name, "slots", info.SlotNum)
	return nil
}

// ID returns the device id.
func (w *Wheel) ID() string { return w.id }

// Name returns the wheel model name.
func (w *Wheel) Name() string { return w.info.Name }

// Info returns the fixed wheel attributes.
func (w *Wheel) Info() asi.WheelInfo { return w.info }

// Properties returns a snapshot of every property.
func (w *Wheel) Properties() []property.Property {
	return w.store.Snapshot()
}

// Property returns one property.
func (w *Wheel) Property(name string) (property.Property, error) {
	return w.store.Get(name)
}

func (w *Wheel) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// UpdateProperty moves the wheel or changes its direction. The hardware
// call happens before the store is updated.
func (w *Wheel) UpdateProperty(ctx context.Context, name, raw string) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v, err := w.store.Validate(name, raw)
	if err != nil {
		return err
	}

	values := []property.Update{{Name: name, Value: v}}
	switch name {
	case PropActualSlot:
		if err := w.sdk.SetPosition(w.hwID, int(v.Int)); err != nil {
			return fmt.Errorf("wheel: set %s: %w", name, err)
		}
		pos, err := w.sdk.Position(w.hwID)
		if err == nil {
			values = append(values, property.Update{Name: PropMoving, Value: property.Bool(pos < 0)})
		}
	case PropDirection:
		if err := w.sdk.SetDirection(w.hwID, v.Bool); err != nil {
			return fmt.Errorf("wheel: set %s: %w", name, err)
		}
	default:
		return fmt.Errorf("%w: %s", property.ErrReadOnlyProperty, name)
	}

	w.notify(w.store.Apply(values))
	w.log.Debug("property updated", "property", name, "value", v.Text())
	return nil
}

// Refresh reads position and direction from the hardware. A wheel in
// motion keeps its target slot and reports moving=true.
func (w *Wheel) Refresh(ctx context.Context) ([]property.Property, error) {
	if w.isClosed() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slotBefore, _ := w.store.Get(PropActualSlot)
	dirBefore, _ := w.store.Get(PropDirection)

	var errs []error
	var updates []property.Update

	pos, err := w.sdk.Position(w.hwID)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", PropActualSlot, err))
	} else {
		updates = append(updates, property.Update{Name: PropMoving, Value: property.Bool(pos < 0)})
		if pos >= 0 {
			updates = append(updates, property.Update{
				Name:      PropActualSlot,
				Value:     property.Int(int64(pos)),
				IfVersion: slotBefore.Version,
			})
		}
	}

	uni, err := w.sdk.Direction(w.hwID)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", PropDirection, err))
	} else {
		updates = append(updates, property.Update{
			Name:      PropDirection,
			Value:     property.Bool(uni),
			IfVersion: dirBefore.Version,
		})
	}

	changed := w.store.Apply(updates)
	w.notify(changed)

	if len(errs) > 0 {
		return changed, fmt.Errorf("wheel: refresh %q: %w", w.info.Name, errors.Join(errs...))
	}
	return changed, nil
}

// Calibrate starts a calibration run and returns once the hardware has
// accepted it. Completion is visible through the calibrating property.
func (w *Wheel) Calibrate(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.calibrating {
		w.mu.Unlock()
		return ErrCalibrationInProgress
	}
	w.mu.Unlock()

	if err := w.sdk.Calibrate(w.hwID); err != nil {
		return fmt.Errorf("wheel: calibrate: %w", err)
	}

	w.mu.Lock()
	w.calibrating = true
	w.mu.Unlock()

	w.notify(w.store.Apply([]property.Update{
		{Name: PropCalibrating, Value: property.Bool(true)},
		{Name: PropMoving, Value: property.Bool(true)},
	}))
	w.log.Info("calibration started", "name", w.info.Name)

	w.wg.Add(1)
	go w.awaitCalibration()
	return nil
}

func (w *Wheel) awaitCalibration() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.settle)
	defer ticker.Stop()

	updates := []property.Update{{Name: PropCalibrating, Value: property.Bool(false)}}
	for {
		select {
		case <-w.ctx.Done():
			w.finishCalibration(updates)
			return
		case <-ticker.C:
		}

		pos, err := w.sdk.Position(w.hwID)
		if err != nil {
			w.log.Error("calibration failed", "name", w.info.Name, "error", err)
			w.finishCalibration(updates)
			return
		}
		if pos >= 0 {
			updates = append(updates,
				property.Update{Name: PropActualSlot, Value: property.Int(int64(pos))},
				property.Update{Name: PropMoving, Value: property.Bool(false)},
			)
			w.finishCalibration(updates)
			w.log.Info("calibration complete", "name", w.info.Name, "slot", pos)
			return
		}
	}
}

func (w *Wheel) finishCalibration(updates []property.Update) {
	w.notify(w.store.Apply(updates))
	w.mu.Lock()
	w.calibrating = false
	w.mu.Unlock()
}

func (w *Wheel) notify(changed []property.Property) {
	if len(changed) > 0 && w.onChange != nil {
		w.onChange(changed)
	}
}

// Close stops waiting on calibration and releases the hardware handle.
func (w *Wheel) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.wg.Wait()

	if err := w.sdk.Close(w.hwID); err != nil {
		return fmt.Errorf("wheel: closing %q: %w", w.info.Name, err)
	}
	w.log.Info("filter wheel closed", "name", w.info.Name)
	return nil
}
