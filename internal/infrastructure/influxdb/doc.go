// Package influxdb writes driver telemetry to InfluxDB v2.
//
// Property changes become points in the device_properties measurement
// (one field per numeric or boolean property) and finished exposures
// become points in the captures measurement. Writes go through the
// client library's non-blocking batched WriteAPI; asynchronous write
// errors are delivered to the SetOnError callback.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	manager.AddObserver(influxdb.NewTelemetry(client))
package influxdb
