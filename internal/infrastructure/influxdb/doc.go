// Package influxdb writes rig samples and control transitions to InfluxDB v2.
//
// Writes are non-blocking and batched by the official client according to
// batch_size and flush_interval; failures are reported through the
// SetOnError callback.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WriteSample("sensor", 0, "strain 0", 1.5, 0.02, time.Now())
package influxdb
