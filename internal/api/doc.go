// Package api implements the HTTP/JSON RPC surface and WebSocket event
// stream for the lightspeed-asi driver.
//
// This package provides:
//   - REST endpoints to list devices, write properties, start exposures,
//     calibrate filter wheels and read capture history
//   - WebSocket hub broadcasting property changes and capture results
//   - Optional HS256 bearer token authentication, with single-use tickets
//     for browser WebSocket clients
//   - Per-client rate limiting on requests that reach the hardware
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Errors
//
// Every failure is a JSON body {"status","code","message"}. Hardware
// failures are reported as 502 hardware_error carrying only the error
// kind ("asi: timeout"), never the vendor status code.
//
// # Events
//
// The Hub implements driver.Observer. Clients subscribe to channels by
// sending {"type":"subscribe","payload":{"channels":[...]}}, optionally
// with "device_ids" to receive events for those devices only:
//   - device.properties_changed: {"device_id", "properties"}
//   - capture.finished: a capture record
package api
