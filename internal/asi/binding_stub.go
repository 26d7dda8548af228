//go:build !asi || !cgo

package asi

// NewCameraLibrary reports ErrSDKUnavailable in builds without the asi tag.
func NewCameraLibrary() (CameraSDK, error) {
	return nil, ErrSDKUnavailable
}

// NewWheelLibrary reports ErrSDKUnavailable in builds without the asi tag.
func NewWheelLibrary() (WheelSDK, error) {
	return nil, ErrSDKUnavailable
}
