package asi

import (
	"errors"
	"fmt"
)

// Error kinds. A *HardwareError matches exactly one of these with errors.Is.
var (
	ErrInvalidIndex     = errors.New("asi: invalid index")
	ErrInvalidID        = errors.New("asi: invalid id")
	ErrClosed           = errors.New("asi: device closed")
	ErrRemoved          = errors.New("asi: device removed")
	ErrTimeout          = errors.New("asi: timeout")
	ErrBusy             = errors.New("asi: busy")
	ErrInvalidParameter = errors.New("asi: invalid parameter")
	ErrGeneral          = errors.New("asi: general error")
)

// ErrSDKUnavailable is returned by the library constructors when the
// binary was built without the vendor SDK.
var ErrSDKUnavailable = errors.New("asi: vendor SDK not compiled in")

// HardwareError is a non-zero status code returned by a vendor SDK call.
type HardwareError struct {
	// Op is the SDK operation that failed (e.g. "SetControlValue").
	Op string

	// Code is the raw vendor status code. It is for logs only and must not
	// be shown to remote clients.
	Code int

	// Name is the vendor's symbolic name for Code.
	Name string

	// Kind is one of the Err* kind sentinels.
	Kind error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("%s: %s (%s, code %d)", e.Op, e.Kind, e.Name, e.Code)
}

// Unwrap exposes the kind so errors.Is matches it.
func (e *HardwareError) Unwrap() error {
	return e.Kind
}

type codeInfo struct {
	name string
	kind error
}

var cameraCodes = map[int]codeInfo{
	1:  {"ASI_ERROR_INVALID_INDEX", ErrInvalidIndex},
	2:  {"ASI_ERROR_INVALID_ID", ErrInvalidID},
	3:  {"ASI_ERROR_INVALID_CONTROL_TYPE", ErrInvalidParameter},
	4:  {"ASI_ERROR_CAMERA_CLOSED", ErrClosed},
	5:  {"ASI_ERROR_CAMERA_REMOVED", ErrRemoved},
	6:  {"ASI_ERROR_INVALID_PATH", ErrInvalidParameter},
	7:  {"ASI_ERROR_INVALID_FILEFORMAT", ErrInvalidParameter},
	8:  {"ASI_ERROR_INVALID_SIZE", ErrInvalidParameter},
	9:  {"ASI_ERROR_INVALID_IMGTYPE", ErrInvalidParameter},
	10: {"ASI_ERROR_OUTOF_BOUNDARY", ErrInvalidParameter},
	11: {"ASI_ERROR_TIMEOUT", ErrTimeout},
	12: {"ASI_ERROR_INVALID_SEQUENCE", ErrBusy},
	13: {"ASI_ERROR_BUFFER_TOO_SMALL", ErrInvalidParameter},
	14: {"ASI_ERROR_VIDEO_MODE_ACTIVE", ErrBusy},
	15: {"ASI_ERROR_EXPOSURE_IN_PROGRESS", ErrBusy},
	16: {"ASI_ERROR_GENERAL_ERROR", ErrGeneral},
	17: {"ASI_ERROR_INVALID_MODE", ErrInvalidParameter},
	18: {"ASI_ERROR_GPS_NOT_SUPPORTED", ErrInvalidParameter},
}

var wheelCodes = map[int]codeInfo{
	1: {"EFW_ERROR_INVALID_INDEX", ErrInvalidIndex},
	2: {"EFW_ERROR_INVALID_ID", ErrInvalidID},
	3: {"EFW_ERROR_INVALID_VALUE", ErrInvalidParameter},
	4: {"EFW_ERROR_REMOVED", ErrRemoved},
	5: {"EFW_ERROR_MOVING", ErrBusy},
	6: {"EFW_ERROR_ERROR_STATE", ErrGeneral},
	7: {"EFW_ERROR_GENERAL_ERROR", ErrGeneral},
	8: {"EFW_ERROR_NOT_SUPPORTED", ErrInvalidParameter},
	9: {"EFW_ERROR_CLOSED", ErrClosed},
}

// CameraError maps a camera SDK status code to an error. Code 0 is nil.
func CameraError(op string, code int) error {
	return classify(op, code, cameraCodes, "ASI_ERROR_UNKNOWN")
}

// WheelError maps a filter wheel SDK status code to an error. Code 0 is nil.
func WheelError(op string, code int) error {
	return classify(op, code, wheelCodes, "EFW_ERROR_UNKNOWN")
}

func classify(op string, code int, table map[int]codeInfo, unknown string) error {
	if code == 0 {
		return nil
	}
	info, ok := table[code]
	if !ok {
		info = codeInfo{unknown, ErrGeneral}
	}
	return &HardwareError{Op: op, Code: code, Name: info.name, Kind: info.kind}
}

// Kind returns the kind sentinel of err, or nil if err is not a hardware error.
func Kind(err error) error {
	var hw *HardwareError
	if errors.As(err, &hw) {
		return hw.Kind
	}
	return nil
}
