package bridge

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/lightspeed-asi/internal/driver"
)

// AckStatus is the outcome of a request.
type AckStatus string

// Ack statuses. Expose and calibrate are accepted once started; their
// completion shows up in the snapshot and capture topics.
const (
	AckOK       AckStatus = "ok"
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
)

// UpdateRequest writes one property.
type UpdateRequest struct {
	RequestID string          `json:"request_id"`
	Name      string          `json:"name"`
	Value     json.RawMessage `json:"value"`
}

// ExposeRequest starts an exposure of Length seconds.
type ExposeRequest struct {
	RequestID string  `json:"request_id"`
	Length    float64 `json:"length"`
}

// CalibrateRequest starts filter wheel calibration.
type CalibrateRequest struct {
	RequestID string `json:"request_id"`
}

// Ack reports the outcome of a request on devices/<id>/ack.
type Ack struct {
	RequestID string      `json:"request_id"`
	DeviceID  string      `json:"device_id"`
	Action    string      `json:"action"`
	Status    AckStatus   `json:"status"`
	Code      driver.Code `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`

	// ExposureID is set on accepted expose requests.
	ExposureID string    `json:"exposure_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Snapshot is the retained state of one device on devices/<id>.
type Snapshot struct {
	driver.Info
	Timestamp time.Time `json:"timestamp"`
}
