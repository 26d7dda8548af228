// Package mqtt wraps paho.mqtt.golang for the driver's pub/sub surface.
//
// It owns connection management with auto-reconnect, publish and
// subscribe validation, re-subscription after reconnect, panic recovery
// in message handlers, and the online/offline status published on
// <prefix>/system/status (with an LWT for crashes).
//
// Topic names live in Topics so every publisher and subscriber agrees:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
//	err = client.Subscribe(topics.AllDeviceUpdates(), 1, handleUpdate)
//
// Broker round-trip tests are tagged integration and expect a broker on
// 127.0.0.1:1883.
package mqtt
