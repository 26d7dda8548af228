package camera

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/property"
)

// gainCapsSDK narrows the simulator's gain range to 0-100.
type gainCapsSDK struct {
	*asi.CameraSimulator
}

func (s gainCapsSDK) ControlCaps(id, idx int) (asi.ControlCaps, error) {
	cc, err := s.CameraSimulator.ControlCaps(id, idx)
	if err == nil && cc.Type == asi.ControlGain {
		cc.MinValue, cc.MaxValue = 0, 100
	}
	return cc, err
}

// ============================================================================
// Open Tests
// ============================================================================

func TestOpen_BuildsProperties(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	c := r.cam

	if got := mustGet(t, c, PropMaxWidth).Value.Int; got != 64 {
		t.Errorf("max_width = %d, want 64", got)
	}
	if got := mustGet(t, c, PropSupportedBins).Value.Str; got != "1x1,2x2" {
		t.Errorf("supported_bins = %q, want 1x1,2x2", got)
	}
	if got := mustGet(t, c, PropBin).Value.Str; got != "1x1" {
		t.Errorf("bin = %q, want 1x1", got)
	}
	if got := mustGet(t, c, PropImageType).Value.Str; got != "RAW8" {
		t.Errorf("image_type = %q, want RAW8", got)
	}
	if got := mustGet(t, c, PropExposureStatus).Value.Str; got != "IDLE" {
		t.Errorf("exposure_status = %q, want IDLE", got)
	}

	gain := mustGet(t, c, "gain")
	if gain.Permission != property.ReadWrite || gain.Kind() != property.KindInteger {
		t.Errorf("gain = %+v, want read-write integer", gain)
	}
	if gain.Bounds == nil || gain.Bounds.Max != 570 {
		t.Errorf("gain bounds = %+v, want max 570", gain.Bounds)
	}

	temp := mustGet(t, c, "temperature")
	if temp.Permission != property.ReadOnly || temp.Kind() != property.KindFloat {
		t.Errorf("temperature = %+v, want read-only float", temp)
	}
	if temp.Value.Float != 2.0 {
		t.Errorf("temperature = %v, want 2.0 (raw 20 / 10)", temp.Value.Float)
	}

	for _, name := range []string{"high_speed_mode", "band_width", "target_temp", "cooler_on"} {
		if _, err := c.Property(name); err != nil {
			t.Errorf("control property %s missing: %v", name, err)
		}
	}
}

func TestOpen_GeneratesAlias(t *testing.T) {
	r := newRig(t, smallSpec(), nil)

	alias := mustGet(t, r.cam, PropAlias).Value.Str
	if len(alias) != asi.AliasLength {
		t.Fatalf("alias = %q, want %d characters", alias, asi.AliasLength)
	}
	stored, err := r.sim.CameraAlias(0)
	if err != nil {
		t.Fatalf("CameraAlias() error = %v", err)
	}
	if stored != alias {
		t.Errorf("camera flash alias = %q, want %q", stored, alias)
	}
}

func TestOpen_KeepsExistingAlias(t *testing.T) {
	sim := asi.NewCameraSimulator(smallSpec())
	_ = sim.Open(0)
	_ = sim.SetCameraAlias(0, "scope01")
	_ = sim.Close(0)

	r := newRigWithSDK(t, sim, nil, nil)
	if got := mustGet(t, r.cam, PropAlias).Value.Str; got != "scope01" {
		t.Errorf("alias = %q, want scope01", got)
	}
}

func TestOpen_InvalidIndex(t *testing.T) {
	sim := asi.NewCameraSimulator(smallSpec())
	_, err := Open(context.Background(), sim, 3, Options{ID: "x"})
	if !errors.Is(err, asi.ErrInvalidIndex) {
		t.Errorf("Open(3) error = %v, want ErrInvalidIndex", err)
	}
}

func TestOpen_InitFailureClosesHandle(t *testing.T) {
	sim := asi.NewCameraSimulator(smallSpec())
	sim.InjectFault(0, "NumControls", 5)

	_, err := Open(context.Background(), sim, 0, Options{ID: "x"})
	if !errors.Is(err, asi.ErrRemoved) {
		t.Fatalf("Open() error = %v, want ErrRemoved", err)
	}
	if sim.IsOpen(0) {
		t.Error("hardware handle left open after failed init")
	}
}

// ============================================================================
// UpdateProperty Tests
// ============================================================================

func TestUpdateProperty_WritesThroughOnce(t *testing.T) {
	sim := asi.NewCameraSimulator(smallSpec())
	sim.SetHardwareValue(0, asi.ControlGain, 50)
	r := newRigWithSDK(t, sim, gainCapsSDK{sim}, nil)

	if got := mustGet(t, r.cam, "gain"); got.Value.Int != 50 || got.Bounds.Max != 100 {
		t.Fatalf("gain = %+v, want 50 with bounds 0-100", got)
	}

	if err := r.cam.UpdateProperty(context.Background(), "gain", "75"); err != nil {
		t.Fatalf("UpdateProperty() error = %v", err)
	}

	if got := mustGet(t, r.cam, "gain").Value.Int; got != 75 {
		t.Errorf("gain = %d, want 75", got)
	}
	var gainWrites []asi.ControlWrite
	for _, w := range sim.Writes(0) {
		if w.Type == asi.ControlGain {
			gainWrites = append(gainWrites, w)
		}
	}
	if len(gainWrites) != 1 || gainWrites[0].Value != 75 {
		t.Errorf("gain writes = %+v, want exactly one write of 75", gainWrites)
	}
	if !r.changed("gain") {
		t.Error("OnChange not called for gain")
	}
}

func TestUpdateProperty_UnknownLeavesStore(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	before := snapshotValues(r.cam)

	err := r.cam.UpdateProperty(context.Background(), "nonexistent", "1")
	if !errors.Is(err, property.ErrUnknownProperty) {
		t.Fatalf("UpdateProperty() error = %v, want ErrUnknownProperty", err)
	}
	if !sameValues(before, snapshotValues(r.cam)) {
		t.Error("store changed after rejected update")
	}
}

func TestUpdateProperty_ReadOnlyAlwaysRejected(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	writesBefore := len(r.sim.Writes(0))

	for _, p := range r.cam.Properties() {
		if p.Permission != property.ReadOnly {
			continue
		}
		for _, raw := range []string{p.Value.Text(), "1", "true", "x"} {
			err := r.cam.UpdateProperty(context.Background(), p.Name, raw)
			if !errors.Is(err, property.ErrReadOnlyProperty) {
				t.Errorf("UpdateProperty(%s, %q) error = %v, want ErrReadOnlyProperty", p.Name, raw, err)
			}
		}
		if after := mustGet(t, r.cam, p.Name); !after.Value.Equal(p.Value) || after.Version != p.Version {
			t.Errorf("%s changed after read-only rejection", p.Name)
		}
	}
	if len(r.sim.Writes(0)) != writesBefore {
		t.Error("read-only rejection reached the hardware")
	}
}

func TestUpdateProperty_InvalidValue(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	before := snapshotValues(r.cam)

	tests := []struct {
		name string
		prop string
		raw  string
	}{
		{"above bounds", "gain", "9999"},
		{"not a number", "gain", "lots"},
		{"empty", "gain", ""},
		{"bad bin", PropBin, "3x3"},
		{"bad format", PropImageType, "RAW12"},
		{"alias too long", PropAlias, "abcdefghij"},
		{"alias punctuation", PropAlias, "ab-cd"},
		{"width beyond sensor", PropWidth, "128"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.cam.UpdateProperty(context.Background(), tt.prop, tt.raw)
			if !errors.Is(err, property.ErrInvalidValue) {
				t.Errorf("UpdateProperty(%s, %q) error = %v, want ErrInvalidValue", tt.prop, tt.raw, err)
			}
		})
	}

	if !sameValues(before, snapshotValues(r.cam)) {
		t.Error("store changed after invalid updates")
	}
	if len(r.sim.Writes(0)) != 0 {
		t.Errorf("invalid updates reached the hardware: %+v", r.sim.Writes(0))
	}
}

func TestUpdateProperty_HardwareFailureLeavesStore(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	before := mustGet(t, r.cam, "gain")
	r.sim.InjectFault(0, "SetControlValue", 11)

	err := r.cam.UpdateProperty(context.Background(), "gain", "100")
	if !errors.Is(err, asi.ErrTimeout) {
		t.Fatalf("UpdateProperty() error = %v, want ErrTimeout", err)
	}

	after := mustGet(t, r.cam, "gain")
	if !after.Value.Equal(before.Value) || after.Version != before.Version {
		t.Errorf("gain = %+v after hardware failure, want unchanged %+v", after, before)
	}
}

func TestUpdateProperty_ROI(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	ctx := context.Background()

	if err := r.cam.UpdateProperty(ctx, PropWidth, "32"); err != nil {
		t.Fatalf("UpdateProperty(width) error = %v", err)
	}
	if roi := r.cam.ROI(); roi.Width != 32 || roi.Height != 32 {
		t.Errorf("ROI = %+v, want 32x32", roi)
	}

	// Back to full width, then bin 2 must shrink the window to fit.
	if err := r.cam.UpdateProperty(ctx, PropWidth, "64"); err != nil {
		t.Fatalf("UpdateProperty(width) error = %v", err)
	}
	if err := r.cam.UpdateProperty(ctx, PropBin, "2x2"); err != nil {
		t.Fatalf("UpdateProperty(bin) error = %v", err)
	}
	roi := r.cam.ROI()
	if roi.Bin != 2 || roi.Width != 32 || roi.Height != 16 {
		t.Errorf("ROI = %+v, want 32x16 bin 2", roi)
	}
	if got := mustGet(t, r.cam, PropWidth).Value.Int; got != 32 {
		t.Errorf("width property = %d, want 32", got)
	}

	if err := r.cam.UpdateProperty(ctx, PropImageType, "raw16"); err != nil {
		t.Fatalf("UpdateProperty(image_type) error = %v", err)
	}
	if got := mustGet(t, r.cam, PropImageType).Value.Str; got != "RAW16" {
		t.Errorf("image_type = %q, want RAW16", got)
	}
	if r.cam.ROI().Format != asi.FormatRAW16 {
		t.Errorf("cached format = %v, want RAW16", r.cam.ROI().Format)
	}
}

func TestUpdateProperty_Alias(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	if err := r.cam.UpdateProperty(context.Background(), PropAlias, "north01"); err != nil {
		t.Fatalf("UpdateProperty(alias) error = %v", err)
	}
	if got, _ := r.sim.CameraAlias(0); got != "north01" {
		t.Errorf("flash alias = %q, want north01", got)
	}
}

func TestUpdateProperty_AfterClose(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	_ = r.cam.Close()
	if err := r.cam.UpdateProperty(context.Background(), "gain", "1"); !errors.Is(err, ErrClosed) {
		t.Errorf("UpdateProperty() after Close error = %v, want ErrClosed", err)
	}
}

// ============================================================================
// Refresh Tests
// ============================================================================

func TestRefresh_Idempotent(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	ctx := context.Background()

	r.sim.SetHardwareValue(0, asi.ControlGain, 300)
	r.sim.SetHardwareValue(0, asi.ControlTemperature, -105)

	changed, err := r.cam.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	names := map[string]bool{}
	for _, p := range changed {
		names[p.Name] = true
	}
	if len(changed) != 2 || !names["gain"] || !names["temperature"] {
		t.Errorf("Refresh() changed = %v, want gain and temperature", names)
	}
	if got := mustGet(t, r.cam, "temperature").Value.Float; got != -10.5 {
		t.Errorf("temperature = %v, want -10.5", got)
	}

	before := snapshotValues(r.cam)
	changed, err = r.cam.Refresh(ctx)
	if err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("second Refresh() changed = %+v, want none", changed)
	}
	if !sameValues(before, snapshotValues(r.cam)) {
		t.Error("second Refresh() mutated the store")
	}
}

func TestRefresh_SkipsFailedControls(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	r.sim.SetHardwareValue(0, asi.ControlOffset, 42)
	r.sim.InjectFault(0, "ControlValue", 11)

	changed, err := r.cam.Refresh(context.Background())
	if !errors.Is(err, asi.ErrTimeout) {
		t.Errorf("Refresh() error = %v, want wrapped ErrTimeout", err)
	}
	if got := mustGet(t, r.cam, "offset").Value.Int; got != 42 {
		t.Errorf("offset = %d, want 42 despite another control failing", got)
	}
	if len(changed) == 0 {
		t.Error("Refresh() should still report changed controls")
	}
}

func TestRefresh_DoesNotRevertClientWrite(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	ctx := context.Background()

	if err := r.cam.UpdateProperty(ctx, "gain", "120"); err != nil {
		t.Fatalf("UpdateProperty() error = %v", err)
	}
	if _, err := r.cam.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := mustGet(t, r.cam, "gain").Value.Int; got != 120 {
		t.Errorf("gain = %d after refresh, want 120", got)
	}
}

func TestRefresh_AfterClose(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	_ = r.cam.Close()
	if _, err := r.cam.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Refresh() after Close error = %v, want ErrClosed", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	r := newRig(t, smallSpec(), nil)
	if err := r.cam.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.cam.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if r.sim.IsOpen(0) {
		t.Error("hardware still open after Close")
	}
}
