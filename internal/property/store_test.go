package property

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	defs := []Definition{
		{Name: "gain", Value: Int(50), Permission: ReadWrite, Bounds: &Bounds{Min: 0, Max: 100}},
		{Name: "temperature", Value: Float(21.5), Permission: ReadOnly},
		{Name: "cooler_on", Value: Bool(false), Permission: ReadWrite},
		{Name: "image_type", Value: String("RAW8"), Permission: ReadWrite, Choices: []string{"RAW8", "RAW16"}},
		{Name: "max_width", Value: Int(1920), Permission: ReadOnly},
	}
	for _, d := range defs {
		if err := s.Define(d); err != nil {
			t.Fatalf("Define(%s) error = %v", d.Name, err)
		}
	}
	return s
}

func TestStore_DefineDuplicate(t *testing.T) {
	s := newTestStore(t)
	err := s.Define(Definition{Name: "gain", Value: Int(1)})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Define(duplicate) error = %v, want ErrDuplicate", err)
	}
	if err := s.Define(Definition{Name: "broken"}); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Define(no kind) error = %v, want ErrKindMismatch", err)
	}
}

func TestStore_Snapshot(t *testing.T) {
	s := newTestStore(t)
	snap := s.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("len(Snapshot()) = %d, want 5", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1].Name >= snap[i].Name {
			t.Errorf("snapshot not sorted: %s before %s", snap[i-1].Name, snap[i].Name)
		}
	}
}

func TestStore_Get_Unknown(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nonexistent"); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("Get(nonexistent) error = %v, want ErrUnknownProperty", err)
	}
}

func TestStore_Validate(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name    string
		prop    string
		raw     string
		want    Value
		wantErr error
	}{
		{name: "valid integer", prop: "gain", raw: "75", want: Int(75)},
		{name: "integer at bound", prop: "gain", raw: "100", want: Int(100)},
		{name: "integer above bound", prop: "gain", raw: "101", wantErr: ErrInvalidValue},
		{name: "integer below bound", prop: "gain", raw: "-1", wantErr: ErrInvalidValue},
		{name: "not an integer", prop: "gain", raw: "high", wantErr: ErrInvalidValue},
		{name: "empty value", prop: "gain", raw: "", wantErr: ErrInvalidValue},
		{name: "read-only", prop: "temperature", raw: "10", wantErr: ErrReadOnlyProperty},
		{name: "unknown", prop: "nonexistent", raw: "1", wantErr: ErrUnknownProperty},
		{name: "bool", prop: "cooler_on", raw: "true", want: Bool(true)},
		{name: "bad bool", prop: "cooler_on", raw: "maybe", wantErr: ErrInvalidValue},
		{name: "choice normalised", prop: "image_type", raw: "raw16", want: String("RAW16")},
		{name: "bad choice", prop: "image_type", raw: "RGB24", wantErr: ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Validate(tt.prop, tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate(%s, %q) error = %v, want %v", tt.prop, tt.raw, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate(%s, %q) error = %v", tt.prop, tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Validate(%s, %q) = %+v, want %+v", tt.prop, tt.raw, got, tt.want)
			}
		})
	}
}

func TestStore_Validate_NeverMutates(t *testing.T) {
	s := newTestStore(t)
	before := s.Version()

	_, _ = s.Validate("gain", "75")
	_, _ = s.Validate("temperature", "1")
	_, _ = s.Validate("nonexistent", "1")

	if s.Version() != before {
		t.Error("Validate() must not change the store")
	}
	p, _ := s.Get("gain")
	if p.Value.Int != 50 {
		t.Errorf("gain = %d, want 50", p.Value.Int)
	}
}

func TestStore_Validate_Check(t *testing.T) {
	s := NewStore()
	_ = s.Define(Definition{
		Name:       "alias",
		Value:      String("abc"),
		Permission: ReadWrite,
		Check: func(v Value) error {
			if len(v.Str) > 8 {
				return fmt.Errorf("too long")
			}
			return nil
		},
	})

	if _, err := s.Validate("alias", "123456789"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Validate(long alias) error = %v, want ErrInvalidValue", err)
	}
	if _, err := s.Validate("alias", "12345678"); err != nil {
		t.Errorf("Validate(8 chars) error = %v", err)
	}
}

func TestStore_Set(t *testing.T) {
	s := newTestStore(t)
	p0, _ := s.Get("temperature")

	changed, err := s.Set("temperature", Float(-10))
	if err != nil || !changed {
		t.Fatalf("Set() = %v, %v; want true, nil", changed, err)
	}
	p1, _ := s.Get("temperature")
	if p1.Value.Float != -10 {
		t.Errorf("temperature = %v, want -10", p1.Value.Float)
	}
	if p1.Version != p0.Version+1 {
		t.Errorf("Version = %d, want %d", p1.Version, p0.Version+1)
	}

	changed, err = s.Set("temperature", Float(-10))
	if err != nil || changed {
		t.Errorf("Set(same) = %v, %v; want false, nil", changed, err)
	}

	if _, err := s.Set("temperature", Int(3)); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Set(wrong kind) error = %v, want ErrKindMismatch", err)
	}
	if _, err := s.Set("nonexistent", Int(3)); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("Set(unknown) error = %v, want ErrUnknownProperty", err)
	}
}

func TestStore_Apply_Diffing(t *testing.T) {
	s := newTestStore(t)
	updates := []Update{
		{Name: "gain", Value: Int(60)},
		{Name: "temperature", Value: Float(21.5)},
		{Name: "nonexistent", Value: Int(1)},
		{Name: "max_width", Value: String("oops")},
	}

	changed := s.Apply(updates)
	if len(changed) != 1 || changed[0].Name != "gain" {
		t.Fatalf("Apply() changed = %+v, want only gain", changed)
	}

	version := s.Version()
	if again := s.Apply(updates); len(again) != 0 {
		t.Errorf("second Apply() changed = %+v, want none", again)
	}
	if s.Version() != version {
		t.Error("idempotent Apply() must not bump the version")
	}
}

func TestStore_Apply_StaleUpdateDropped(t *testing.T) {
	s := newTestStore(t)

	// Poller captures the version, then a client write lands before the
	// poller commits its (older) hardware reading.
	read, _ := s.Get("gain")
	if _, err := s.Set("gain", Int(75)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	changed := s.Apply([]Update{{Name: "gain", Value: Int(50), IfVersion: read.Version}})
	if len(changed) != 0 {
		t.Errorf("stale Apply() changed = %+v, want none", changed)
	}
	p, _ := s.Get("gain")
	if p.Value.Int != 75 {
		t.Errorf("gain = %d, want 75", p.Value.Int)
	}

	changed = s.Apply([]Update{{Name: "gain", Value: Int(80), IfVersion: p.Version}})
	if len(changed) != 1 {
		t.Errorf("current-version Apply() changed = %d entries, want 1", len(changed))
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = s.Set("gain", Int(int64(j%100)))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				for _, p := range s.Snapshot() {
					if p.Name == "gain" && p.Value.Kind != KindInteger {
						t.Errorf("torn read: %+v", p)
					}
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Apply([]Update{{Name: "temperature", Value: Float(float64(j))}})
			}
		}()
	}
	wg.Wait()
}

func TestProperty_MarshalJSON(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.Get("gain")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["value"] != float64(50) {
		t.Errorf("value = %v, want 50", decoded["value"])
	}
	if decoded["kind"] != "integer" {
		t.Errorf("kind = %v, want integer", decoded["kind"])
	}
	if decoded["permission"] != "read_write" {
		t.Errorf("permission = %v, want read_write", decoded["permission"])
	}
	if _, ok := decoded["bounds"]; !ok {
		t.Error("bounds missing")
	}
}
