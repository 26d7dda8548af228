package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/lightspeed-asi/internal/camera"
	"github.com/nerrad567/lightspeed-asi/internal/capture"
	"github.com/nerrad567/lightspeed-asi/internal/property"
)

// Measurement names.
const (
	MeasurementProperties = "device_properties"
	MeasurementCaptures   = "captures"
)

// PropertiesPoint builds one point holding every changed property as a
// field. It returns nil when nothing in changed is writable as a field.
func PropertiesPoint(deviceID string, changed []property.Property, at time.Time) *write.Point {
	fields := make(map[string]any, len(changed))
	for _, p := range changed {
		if p.Value.Kind == property.KindString {
			continue
		}
		fields[p.Name] = p.Value.Interface()
	}
	if len(fields) == 0 {
		return nil
	}
	return write.NewPoint(MeasurementProperties,
		map[string]string{"device_id": deviceID},
		fields, at)
}

// CapturePoint builds the point for a finished exposure, stamped with its
// finish time.
func CapturePoint(res camera.Result) *write.Point {
	exp := res.Exposure
	fields := map[string]any{
		"length":      exp.Length,
		"width":       int64(exp.Width),
		"height":      int64(exp.Height),
		"bin":         int64(exp.Bin),
		"buffer_size": int64(exp.BufferSize),
		"sequence":    int64(res.Sequence),
	}
	if !exp.StartedAt.IsZero() && !res.FinishedAt.IsZero() {
		fields["elapsed"] = res.FinishedAt.Sub(exp.StartedAt).Seconds()
	}
	if text := capture.ErrorText(res.Err); text != "" {
		fields["error"] = text
	}

	at := res.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(MeasurementCaptures,
		map[string]string{
			"device_id":   exp.DeviceID,
			"device_name": exp.DeviceName,
			"state":       res.State.String(),
			"format":      exp.Format.String(),
		},
		fields, at)
}

// Telemetry is a driver observer that mirrors property changes and
// capture results into InfluxDB.
type Telemetry struct {
	client *Client
	now    func() time.Time
}

// NewTelemetry creates a Telemetry writing through client.
func NewTelemetry(client *Client) *Telemetry {
	return &Telemetry{client: client, now: time.Now}
}

// PropertiesChanged writes the changed numeric and boolean properties.
func (t *Telemetry) PropertiesChanged(deviceID string, changed []property.Property) {
	t.client.WritePoint(PropertiesPoint(deviceID, changed, t.now()))
}

// CaptureFinished writes one captures point.
func (t *Telemetry) CaptureFinished(res camera.Result) {
	t.client.WritePoint(CapturePoint(res))
}
