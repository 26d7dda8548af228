// Package camera owns one ASI camera: its hardware handle, its property
// store, its cached ROI and its exposure state machine.
//
// # Concurrency
//
// Reads go straight to the property store and never wait on hardware.
// Client writes and the synchronous start of an exposure are serialized by a
// per-camera write mutex and are write-through: the hardware call happens
// first and the store is only updated when it succeeds. Refresh, called by
// the polling loop, reads hardware without holding any lock and commits
// with compare-and-set so it cannot revert a newer client write.
//
// Each exposure runs in its own goroutine that polls the exposure status
// without locks, downloads into a buffer it owns, encodes a FITS file and
// hands it to an ArtifactWriter. Only one exposure may be in flight; a second
// request fails with ErrCaptureInProgress.
//
// # Shutdown
//
// Close aborts an in-flight exposure, waits for its goroutine to finish and
// then closes the hardware handle.
package camera
