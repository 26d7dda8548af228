// Package asi is the boundary to the ZWO ASI camera and EFW filter wheel SDKs.
//
// Everything above this package sees plain Go values: control values are
// int64, names and aliases are strings, and every non-zero vendor status code
// arrives as a *HardwareError classified into one of a handful of kinds.
// Narrowing to the C types and parsing fixed-size name arrays happen here
// and nowhere else.
//
// Two implementations of the SDK interfaces exist:
//
//   - CameraSimulator and WheelSimulator, in-memory devices used by tests
//     and by the "simulator" SDK mode
//   - the cgo binding to libASICamera2 and libEFWFilter, compiled only
//     with the asi build tag
//
// # Usage
//
//	cams, err := asi.NewCameraLibrary()
//	if errors.Is(err, asi.ErrSDKUnavailable) {
//	    cams = asi.NewCameraSimulator(asi.DefaultCameraSpec(0, 1920, 1080))
//	}
//	n := cams.NumCameras()
package asi
