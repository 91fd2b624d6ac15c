// Package tsdb writes rig samples to VictoriaMetrics using InfluxDB line
// protocol over plain HTTP, and reads them back with PromQL.
//
//	client, err := tsdb.Connect(ctx, cfg.TSDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WriteSample("sensor", 2, "pressure", 4.5, 101.3, time.Now())
//	raw, err := client.QueryRange(ctx, tsdb.SampleQuery("sensor", 2), from, to, time.Second)
package tsdb
