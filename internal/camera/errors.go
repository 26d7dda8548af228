package camera

import "errors"

// Domain errors for the camera package.
var (
	// ErrClosed is returned for any operation after Close.
	ErrClosed = errors.New("camera: closed")

	// ErrCaptureInProgress is returned when an exposure is requested, or the
	// ROI changed, while another exposure is in flight.
	ErrCaptureInProgress = errors.New("camera: capture in progress")

	// ErrUnsupportedFormat is returned when the current image format cannot
	// be written as a 2-axis image.
	ErrUnsupportedFormat = errors.New("camera: image format not supported for capture")

	// ErrExposureFailed is reported when the hardware ends an exposure with
	// anything but success.
	ErrExposureFailed = errors.New("camera: exposure failed")

	// ErrAborted is reported for an exposure stopped by Close.
	ErrAborted = errors.New("camera: exposure aborted")

	// ErrArtifactExists is returned by an ArtifactWriter asked to write a
	// name that is already taken. The camera moves on to the next sequence.
	ErrArtifactExists = errors.New("camera: artifact already exists")
)
