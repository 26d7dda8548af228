// Package bridge exposes the device manager over MQTT.
//
// Published (under the configured prefix):
//   - devices/<id>          retained full snapshot, on change and every publish interval
//   - devices/<id>/capture  result of each exposure
//   - devices/<id>/ack      outcome of each request
//
// Subscribed:
//   - devices/+/update      {"request_id","name","value"}
//   - devices/+/expose      {"request_id","length"}
//   - devices/+/calibrate   {"request_id"}
//
// Requests have the same semantics and error codes as the HTTP API.
package bridge
