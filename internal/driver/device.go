package driver

import (
	"context"

	"github.com/nerrad567/lightspeed-asi/internal/camera"
	"github.com/nerrad567/lightspeed-asi/internal/property"
	"github.com/nerrad567/lightspeed-asi/internal/wheel"
)

// Family is the kind of hardware behind a device.
type Family string

// Device families.
const (
	FamilyCamera Family = "camera"
	FamilyWheel  Family = "filter_wheel"
)

// Device is an opened piece of hardware with a property store.
type Device interface {
	ID() string
	Name() string
	Kind() Family
	Properties() []property.Property
	Property(name string) (property.Property, error)
	UpdateProperty(ctx context.Context, name, value string) error
	Refresh(ctx context.Context) ([]property.Property, error)
	Close() error
}

// Info is the client view of a device.
type Info struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Family     Family              `json:"family"`
	Properties []property.Property `json:"properties"`
}

// InfoOf snapshots d.
func InfoOf(d Device) Info {
	return Info{
		ID:         d.ID(),
		Name:       d.Name(),
		Family:     d.Kind(),
		Properties: d.Properties(),
	}
}

// Observer receives device events. Calls arrive on one goroutine in the
// order events happened and must not block for long.
type Observer interface {
	PropertiesChanged(deviceID string, changed []property.Property)
	CaptureFinished(res camera.Result)
}

type cameraDevice struct {
	*camera.Camera
}

func (cameraDevice) Kind() Family { return FamilyCamera }

type wheelDevice struct {
	*wheel.Wheel
}

func (wheelDevice) Kind() Family { return FamilyWheel }
