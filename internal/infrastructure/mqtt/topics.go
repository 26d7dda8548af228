package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "lightspeed"

// Device topic actions.
const (
	ActionUpdate    = "update"
	ActionExpose    = "expose"
	ActionCalibrate = "calibrate"
	ActionAck       = "ack"
	ActionCapture   = "capture"
)

// Topics builds topic names under a common prefix.
//
//	topics := mqtt.NewTopics("observatory")
//	topics.Device("3f2c...")       // observatory/devices/3f2c...
//	topics.DeviceAck("3f2c...")    // observatory/devices/3f2c.../ack
type Topics struct {
	Prefix string
}

// NewTopics returns a builder for prefix, trimming stray slashes.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Device is where a device's full property snapshot is published.
func (t Topics) Device(id string) string {
	return t.prefix() + "/devices/" + id
}

func (t Topics) deviceAction(id, action string) string {
	return t.Device(id) + "/" + action
}

// DeviceUpdate receives {"name","value"} property writes.
func (t Topics) DeviceUpdate(id string) string { return t.deviceAction(id, ActionUpdate) }

// DeviceExpose receives {"length"} capture requests.
func (t Topics) DeviceExpose(id string) string { return t.deviceAction(id, ActionExpose) }

// DeviceCalibrate receives wheel calibration requests.
func (t Topics) DeviceCalibrate(id string) string { return t.deviceAction(id, ActionCalibrate) }

// DeviceAck carries the outcome of every request received for a device.
func (t Topics) DeviceAck(id string) string { return t.deviceAction(id, ActionAck) }

// DeviceCapture carries finished capture results.
func (t Topics) DeviceCapture(id string) string { return t.deviceAction(id, ActionCapture) }

// AllDeviceUpdates matches DeviceUpdate for every device.
func (t Topics) AllDeviceUpdates() string { return t.deviceAction("+", ActionUpdate) }

// AllDeviceExposes matches DeviceExpose for every device.
func (t Topics) AllDeviceExposes() string { return t.deviceAction("+", ActionExpose) }

// AllDeviceCalibrates matches DeviceCalibrate for every device.
func (t Topics) AllDeviceCalibrates() string { return t.deviceAction("+", ActionCalibrate) }

// SystemStatus carries the retained online/offline status and the LWT.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// ParseDeviceTopic splits <prefix>/devices/<id>/<action>. ok is false for
// topics outside the prefix or without an action.
func (t Topics) ParseDeviceTopic(topic string) (id, action string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/devices/")
	if !found {
		return "", "", false
	}
	id, action, found = strings.Cut(rest, "/")
	if !found || id == "" || action == "" || strings.Contains(action, "/") {
		return "", "", false
	}
	return id, action, true
}
