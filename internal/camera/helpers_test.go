package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/property"
)

type memArtifacts struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{files: make(map[string][]byte)}
}

func (m *memArtifacts) WriteArtifact(name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if _, ok := m.files[name]; ok {
		return "", fmt.Errorf("%w: %s", ErrArtifactExists, name)
	}
	m.files[name] = data
	return "/captures/" + name, nil
}

func (m *memArtifacts) get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return data, ok
}

type fixedSequencer int

func (s fixedSequencer) NextSequence(context.Context, string) (int, error) {
	return int(s), nil
}

// aliasSequencer records the key it was asked for.
type aliasSequencer struct {
	mu   sync.Mutex
	keys []string
	next int
}

func (s *aliasSequencer) NextSequence(_ context.Context, alias string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, alias)
	return s.next, nil
}

type failingSequencer struct{}

func (failingSequencer) NextSequence(context.Context, string) (int, error) {
	return 0, errors.New("database locked")
}

type testRig struct {
	sim       *asi.CameraSimulator
	cam       *Camera
	artifacts *memArtifacts
	results   chan Result

	mu      sync.Mutex
	changes []property.Property
}

func (r *testRig) changed(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.changes {
		if p.Name == name {
			return true
		}
	}
	return false
}

func newRig(t *testing.T, spec asi.CameraSpec, mutate func(*Options)) *testRig {
	t.Helper()
	return newRigWithSDK(t, asi.NewCameraSimulator(spec), nil, mutate)
}

func newRigWithSDK(t *testing.T, sim *asi.CameraSimulator, sdk asi.CameraSDK, mutate func(*Options)) *testRig {
	t.Helper()
	if sdk == nil {
		sdk = sim
	}
	r := &testRig{
		sim:       sim,
		artifacts: newMemArtifacts(),
		results:   make(chan Result, 8),
	}
	opts := Options{
		ID:             "cam-1",
		Artifacts:      r.artifacts,
		StatusInterval: time.Millisecond,
		OnCapture:      func(res Result) { r.results <- res },
		OnChange: func(changed []property.Property) {
			r.mu.Lock()
			r.changes = append(r.changes, changed...)
			r.mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&opts)
	}

	cam, err := Open(context.Background(), sdk, 0, opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = cam.Close() })
	r.cam = cam
	return r
}

func smallSpec() asi.CameraSpec {
	return asi.CameraSpec{Name: "ZWO ASI Test", Width: 64, Height: 32, Color: true, Cooled: true}
}

func (r *testRig) waitResult(t *testing.T) Result {
	t.Helper()
	select {
	case res := <-r.results:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for capture result")
		return Result{}
	}
}

func mustGet(t *testing.T, c *Camera, name string) property.Property {
	t.Helper()
	p, err := c.Property(name)
	if err != nil {
		t.Fatalf("Property(%s) error = %v", name, err)
	}
	return p
}

func snapshotValues(c *Camera) map[string]property.Value {
	out := make(map[string]property.Value)
	for _, p := range c.Properties() {
		out[p.Name] = p.Value
	}
	return out
}

func sameValues(a, b map[string]property.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if !v.Equal(b[k]) {
			return false
		}
	}
	return true
}
