package driver

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/camera"
	"github.com/nerrad567/lightspeed-asi/internal/property"
	"github.com/nerrad567/lightspeed-asi/internal/wheel"
)

var (
	// ErrDeviceNotFound is returned for an unknown device id.
	ErrDeviceNotFound = errors.New("driver: device not found")

	// ErrNotSupported is returned when an operation does not apply to the
	// device's family, such as exposing a filter wheel.
	ErrNotSupported = errors.New("driver: operation not supported by device")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("driver: manager closed")

	// ErrValueRequired is returned by ValueText for a missing or null value.
	ErrValueRequired = errors.New("driver: value is required")

	// ErrInvalidValue is returned by ValueText for values that are not a
	// JSON string, number or boolean.
	ErrInvalidValue = errors.New("driver: value must be a string, number or boolean")
)

// Code is the client-facing class of a failed device operation. Both the
// HTTP API and the MQTT acks report it.
type Code string

// Error codes.
const (
	CodeNotFound       Code = "not_found"
	CodeInvalidRequest Code = "invalid_request"
	CodeNotSupported   Code = "not_supported"
	CodeConflict       Code = "conflict"
	CodeHardware       Code = "hardware_error"
	CodeUnavailable    Code = "unavailable"
	CodeInternal       Code = "internal_error"
)

// Classify reduces a device operation error to a code and a client-safe
// message. Hardware errors are reported by kind only; vendor status codes
// stay in the logs.
func Classify(err error) (Code, string) {
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return CodeNotFound, err.Error()
	case errors.Is(err, ErrNotSupported):
		return CodeNotSupported, err.Error()
	case errors.Is(err, property.ErrUnknownProperty),
		errors.Is(err, property.ErrReadOnlyProperty),
		errors.Is(err, property.ErrInvalidValue),
		errors.Is(err, property.ErrKindMismatch),
		errors.Is(err, camera.ErrUnsupportedFormat),
		errors.Is(err, ErrInvalidValue),
		errors.Is(err, ErrValueRequired):
		return CodeInvalidRequest, err.Error()
	case errors.Is(err, camera.ErrCaptureInProgress),
		errors.Is(err, wheel.ErrCalibrationInProgress):
		return CodeConflict, err.Error()
	case errors.Is(err, ErrClosed),
		errors.Is(err, camera.ErrClosed),
		errors.Is(err, wheel.ErrClosed):
		return CodeUnavailable, err.Error()
	}
	if kind := asi.Kind(err); kind != nil {
		if errors.Is(kind, asi.ErrBusy) {
			return CodeConflict, kind.Error()
		}
		return CodeHardware, kind.Error()
	}
	return CodeInternal, "internal error"
}

// ValueText converts a JSON string, number or boolean to the text form
// accepted by SetProperty.
func ValueText(msg json.RawMessage) (string, error) {
	if len(msg) == 0 || string(msg) == "null" {
		return "", ErrValueRequired
	}
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return "", ErrInvalidValue
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return string(msg), nil
	default:
		return "", ErrInvalidValue
	}
}
