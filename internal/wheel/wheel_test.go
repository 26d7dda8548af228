package wheel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/property"
)

type recorder struct {
	mu      sync.Mutex
	changes []property.Property
}

func (r *recorder) record(changed []property.Property) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, changed...)
}

func (r *recorder) saw(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.changes {
		if p.Name == name {
			return true
		}
	}
	return false
}

func openTestWheel(t *testing.T, slots int) (*Wheel, *asi.WheelSimulator, *recorder) {
	t.Helper()
	sim := asi.NewWheelSimulator(1, slots)
	sim.MoveTime = 30 * time.Millisecond
	rec := &recorder{}

	w, err := Open(context.Background(), sim, 0, Options{
		ID:             "wheel-test",
		SettleInterval: 5 * time.Millisecond,
		OnChange:       rec.record,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, sim, rec
}

func value(t *testing.T, w *Wheel, name string) property.Value {
	t.Helper()
	p, err := w.Property(name)
	if err != nil {
		t.Fatalf("Property(%s) error = %v", name, err)
	}
	return p.Value
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ============================================================================
// Open Tests
// ============================================================================

func TestOpen_Properties(t *testing.T) {
	w, _, _ := openTestWheel(t, 7)

	if w.ID() != "wheel-test" {
		t.Errorf("ID() = %q, want wheel-test", w.ID())
	}
	if w.Name() != "EFW Simulator 0" {
		t.Errorf("Name() = %q", w.Name())
	}

	tests := []struct {
		name string
		want property.Value
		perm property.Permission
	}{
		{PropWheelID, property.Int(1), property.ReadOnly},
		{PropAvailableSlots, property.Int(7), property.ReadOnly},
		{PropActualSlot, property.Int(0), property.ReadWrite},
		{PropDirection, property.Bool(false), property.ReadWrite},
		{PropMoving, property.Bool(false), property.ReadOnly},
		{PropCalibrating, property.Bool(false), property.ReadOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := w.Property(tt.name)
			if err != nil {
				t.Fatalf("Property() error = %v", err)
			}
			if !p.Value.Equal(tt.want) {
				t.Errorf("value = %s, want %s", p.Value.Text(), tt.want.Text())
			}
			if p.Permission != tt.perm {
				t.Errorf("permission = %v, want %v", p.Permission, tt.perm)
			}
		})
	}
}

// Clients of the original EFW driver address properties by these names.
func TestPropertyWireNames(t *testing.T) {
	w, _, _ := openTestWheel(t, 5)
	for _, name := range []string{"available_slots", "actual_slot", "direction"} {
		if _, err := w.Property(name); err != nil {
			t.Errorf("Property(%q) error = %v", name, err)
		}
	}
	if _, err := w.Property("unidirectional"); err == nil {
		t.Error(`Property("unidirectional") found, want it published as "direction"`)
	}
}

func TestOpen_InvalidIndex(t *testing.T) {
	sim := asi.NewWheelSimulator(1, 5)
	_, err := Open(context.Background(), sim, 3, Options{})
	if !errors.Is(err, asi.ErrInvalidIndex) {
		t.Errorf("Open() error = %v, want ErrInvalidIndex", err)
	}
}

func TestOpen_InfoFailureReleasesHandle(t *testing.T) {
	sim := asi.NewWheelSimulator(1, 5)
	sim.InjectFault(1, "Info", 4)

	if _, err := Open(context.Background(), sim, 0, Options{}); !errors.Is(err, asi.ErrRemoved) {
		t.Fatalf("Open() error = %v, want ErrRemoved", err)
	}
	if _, err := sim.Position(1); !errors.Is(err, asi.ErrClosed) {
		t.Errorf("Position() after failed open error = %v, want ErrClosed", err)
	}
}

// ============================================================================
// UpdateProperty Tests
// ============================================================================

func TestUpdateProperty_MoveSlot(t *testing.T) {
	w, sim, rec := openTestWheel(t, 5)

	if err := w.UpdateProperty(context.Background(), PropActualSlot, "3"); err != nil {
		t.Fatalf("UpdateProperty() error = %v", err)
	}
	if got := value(t, w, PropActualSlot); got.Int != 3 {
		t.Errorf("actual_slot = %d, want 3 immediately after write", got.Int)
	}
	if got := value(t, w, PropMoving); !got.Bool {
		t.Error("moving = false, want true while the wheel turns")
	}
	if !rec.saw(PropActualSlot) {
		t.Error("OnChange not notified of actual_slot")
	}

	waitFor(t, "wheel to settle", func() bool {
		pos, err := sim.Position(1)
		return err == nil && pos == 3
	})
	if _, err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := value(t, w, PropMoving); got.Bool {
		t.Error("moving = true after settle")
	}
	if got := value(t, w, PropActualSlot); got.Int != 3 {
		t.Errorf("actual_slot = %d after settle, want 3", got.Int)
	}
}

func TestUpdateProperty_Direction(t *testing.T) {
	w, sim, _ := openTestWheel(t, 5)

	if err := w.UpdateProperty(context.Background(), PropDirection, "true"); err != nil {
		t.Fatalf("UpdateProperty() error = %v", err)
	}
	uni, _ := sim.Direction(1)
	if !uni {
		t.Error("hardware direction not written")
	}
	if got := value(t, w, PropDirection); !got.Bool {
		t.Error("direction = false, want true")
	}
}

func TestUpdateProperty_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		prop    string
		raw     string
		wantErr error
	}{
		{"slot above range", PropActualSlot, "5", property.ErrInvalidValue},
		{"negative slot", PropActualSlot, "-1", property.ErrInvalidValue},
		{"not a number", PropActualSlot, "red", property.ErrInvalidValue},
		{"read-only slots", PropAvailableSlots, "9", property.ErrReadOnlyProperty},
		{"read-only moving", PropMoving, "true", property.ErrReadOnlyProperty},
		{"unknown", "filter_name", "L", property.ErrUnknownProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, _ := openTestWheel(t, 5)
			before := value(t, w, PropActualSlot)

			err := w.UpdateProperty(context.Background(), tt.prop, tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateProperty() error = %v, want %v", err, tt.wantErr)
			}
			if got := value(t, w, PropActualSlot); !got.Equal(before) {
				t.Errorf("actual_slot changed to %s", got.Text())
			}
		})
	}
}

func TestUpdateProperty_HardwareFailure(t *testing.T) {
	w, sim, _ := openTestWheel(t, 5)
	sim.InjectFault(1, "SetPosition", 4)

	err := w.UpdateProperty(context.Background(), PropActualSlot, "2")
	if !errors.Is(err, asi.ErrRemoved) {
		t.Fatalf("UpdateProperty() error = %v, want ErrRemoved", err)
	}
	if got := value(t, w, PropActualSlot); got.Int != 0 {
		t.Errorf("actual_slot = %d, want unchanged 0", got.Int)
	}
}

func TestUpdateProperty_WhileMoving(t *testing.T) {
	w, _, _ := openTestWheel(t, 5)

	if err := w.UpdateProperty(context.Background(), PropActualSlot, "1"); err != nil {
		t.Fatalf("UpdateProperty() error = %v", err)
	}
	err := w.UpdateProperty(context.Background(), PropActualSlot, "4")
	if !errors.Is(err, asi.ErrBusy) {
		t.Fatalf("second UpdateProperty() error = %v, want ErrBusy", err)
	}
	if got := value(t, w, PropActualSlot); got.Int != 1 {
		t.Errorf("actual_slot = %d, want 1", got.Int)
	}
}

// ============================================================================
// Refresh Tests
// ============================================================================

func TestRefresh_KeepsTargetWhileMoving(t *testing.T) {
	w, sim, _ := openTestWheel(t, 5)
	sim.MoveTime = time.Second

	if err := w.UpdateProperty(context.Background(), PropActualSlot, "2"); err != nil {
		t.Fatalf("UpdateProperty() error = %v", err)
	}
	if _, err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := value(t, w, PropActualSlot); got.Int != 2 {
		t.Errorf("actual_slot = %d, want target 2 while moving", got.Int)
	}
	if got := value(t, w, PropMoving); !got.Bool {
		t.Error("moving = false during move")
	}
}

func TestRefresh_PartialFailure(t *testing.T) {
	w, sim, _ := openTestWheel(t, 5)
	sim.InjectFault(1, "Position", 7)

	_, err := w.Refresh(context.Background())
	if !errors.Is(err, asi.ErrGeneral) {
		t.Fatalf("Refresh() error = %v, want ErrGeneral", err)
	}

	if err := sim.SetDirection(1, true); err != nil {
		t.Fatalf("SetDirection() error = %v", err)
	}
	sim.InjectFault(1, "Position", 7)
	_, _ = w.Refresh(context.Background())
	if got := value(t, w, PropDirection); !got.Bool {
		t.Error("direction not refreshed when position read failed")
	}
}

func TestRefresh_NoChangeNoNotify(t *testing.T) {
	w, _, _ := openTestWheel(t, 5)

	changed, err := w.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("Refresh() changed %d properties on an idle wheel", len(changed))
	}
}

// ============================================================================
// Calibrate Tests
// ============================================================================

func TestCalibrate(t *testing.T) {
	w, sim, rec := openTestWheel(t, 5)

	if err := w.UpdateProperty(context.Background(), PropActualSlot, "3"); err != nil {
		t.Fatalf("UpdateProperty() error = %v", err)
	}
	waitFor(t, "move to finish", func() bool {
		pos, err := sim.Position(1)
		return err == nil && pos == 3
	})

	if err := w.Calibrate(context.Background()); err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	if got := value(t, w, PropCalibrating); !got.Bool {
		t.Error("calibrating = false right after Calibrate")
	}
	if err := w.Calibrate(context.Background()); !errors.Is(err, ErrCalibrationInProgress) {
		t.Errorf("second Calibrate() error = %v, want ErrCalibrationInProgress", err)
	}

	waitFor(t, "calibration", func() bool {
		return !value(t, w, PropCalibrating).Bool
	})
	if got := value(t, w, PropActualSlot); got.Int != 0 {
		t.Errorf("actual_slot = %d after calibration, want 0", got.Int)
	}
	if got := value(t, w, PropMoving); got.Bool {
		t.Error("moving = true after calibration")
	}
	if !rec.saw(PropCalibrating) {
		t.Error("OnChange not notified of calibrating")
	}
}

func TestCalibrate_HardwareFailure(t *testing.T) {
	w, sim, _ := openTestWheel(t, 5)
	sim.InjectFault(1, "Calibrate", 6)

	if err := w.Calibrate(context.Background()); !errors.Is(err, asi.ErrGeneral) {
		t.Fatalf("Calibrate() error = %v, want ErrGeneral", err)
	}
	if got := value(t, w, PropCalibrating); got.Bool {
		t.Error("calibrating = true after failed start")
	}
}

// ============================================================================
// Close Tests
// ============================================================================

func TestClose(t *testing.T) {
	w, sim, _ := openTestWheel(t, 5)
	sim.MoveTime = time.Second

	if err := w.Calibrate(context.Background()); err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close() blocked on calibration")
	}

	if got := value(t, w, PropCalibrating); got.Bool {
		t.Error("calibrating = true after Close")
	}
	if err := w.UpdateProperty(context.Background(), PropActualSlot, "1"); !errors.Is(err, ErrClosed) {
		t.Errorf("UpdateProperty() after Close error = %v, want ErrClosed", err)
	}
	if err := w.Calibrate(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Calibrate() after Close error = %v, want ErrClosed", err)
	}
	if _, err := w.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Refresh() after Close error = %v, want ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
