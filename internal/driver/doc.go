// Package driver owns the set of opened cameras and filter wheels.
//
// A Manager enumerates both SDKs at Start, opens every device it finds,
// refreshes each one on its own poll interval and forwards property and
// capture events to registered observers (MQTT bridge, websocket hub,
// capture recorder, telemetry). Observers are called from a single
// dispatcher goroutine so they see events in order.
package driver
