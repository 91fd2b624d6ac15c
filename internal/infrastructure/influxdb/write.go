package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by rigdash.
const (
	MeasurementSamples = "rig_samples"
	MeasurementControl = "rig_control"
)

// WriteSample queues one rig sample. rigTime is the rig's own clock in
// seconds since it started; at is the wall-clock timestamp of the point.
//
//	client.WriteSample("sensor", 3, "strain 3", 12.5, 0.041, time.Now())
func (c *Client) WriteSample(kind string, id int, name string, rigTime, value float64, at time.Time) {
	c.WritePointWithTime(MeasurementSamples,
		map[string]string{
			"kind":      kind,
			"device_id": strconv.Itoa(id),
			"name":      name,
		},
		map[string]any{
			"value":    value,
			"rig_time": rigTime,
		},
		at)
}

// WriteControlState queues a control-state transition.
func (c *Client) WriteControlState(state string, code int, experiment, user string) {
	c.WritePointWithTime(MeasurementControl,
		map[string]string{"state": state},
		map[string]any{
			"code":       code,
			"experiment": experiment,
			"user":       user,
		},
		time.Now())
}

// WritePointWithTime queues an arbitrary point. Dropped silently when the
// client is closed.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
