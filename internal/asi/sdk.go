package asi

// CameraSDK is the synchronous camera driver. Calls are addressed by the
// camera id from CameraInfo, except CameraInfo itself which takes the
// enumeration index. Implementations must be safe for concurrent use on
// different cameras and for concurrent reads on the same camera.
type CameraSDK interface {
	NumCameras() int
	CameraInfo(index int) (CameraInfo, error)

	Open(id int) error
	Init(id int) error
	Close(id int) error

	NumControls(id int) (int, error)
	ControlCaps(id, controlIndex int) (ControlCaps, error)
	ControlValue(id int, ct ControlType) (value int64, auto bool, err error)
	SetControlValue(id int, ct ControlType, value int64, auto bool) error

	ROIFormat(id int) (ROI, error)
	SetROIFormat(id int, roi ROI) error

	StartExposure(id int, dark bool) error
	StopExposure(id int) error
	ExposureStatus(id int) (ExposureStatus, error)
	DownloadExposure(id int, buf []byte) error

	// CameraAlias reads the 8-byte user id stored in camera flash. An
	// unset alias is returned as "".
	CameraAlias(id int) (string, error)
	SetCameraAlias(id int, alias string) error
}

// WheelSDK is the synchronous EFW filter wheel driver. Calls are addressed
// by the wheel id returned from WheelID.
type WheelSDK interface {
	NumWheels() int
	WheelID(index int) (int, error)

	Open(id int) error
	Close(id int) error
	Info(id int) (WheelInfo, error)

	// Position returns the current slot, or -1 while the wheel is moving.
	Position(id int) (int, error)
	SetPosition(id, slot int) error

	Direction(id int) (unidirectional bool, err error)
	SetDirection(id int, unidirectional bool) error

	Calibrate(id int) error
}

// AliasLength is the size of the camera flash id.
const AliasLength = 8
