// Package republish forwards dashboard state to external consumers: MQTT
// topics and time-series databases. Each adapter is a poller.SampleSink
// and also accepts control, error-log and poller status changes.
package republish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/rigdash/internal/control"
	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/errorlog"
	"github.com/nerrad567/rigdash/internal/infrastructure/mqtt"
	"github.com/nerrad567/rigdash/internal/poller"
	"github.com/nerrad567/rigdash/internal/series"
)

// Publisher sends a JSON payload to a topic. *mqtt.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTT republishes to broker topics built by mqtt.Topics. State topics
// (control, error log) are retained; series and poller status are not.
type MQTT struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTT creates an MQTT adapter.
func NewMQTT(pub Publisher, topics mqtt.Topics) *MQTT {
	return &MQTT{pub: pub, topics: topics}
}

// WriteSamples publishes samples as [[t, v], ...] on the device's series topic.
func (m *MQTT) WriteSamples(_ context.Context, dev device.Device, samples []series.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := m.pub.PublishJSON(m.topics.Series(string(dev.Kind), dev.ID), samples, false); err != nil {
		return fmt.Errorf("publishing %s samples: %w", dev.Ref(), err)
	}
	return nil
}

// ControlChanged publishes the retained control view.
func (m *MQTT) ControlChanged(v control.View) error {
	return m.pub.PublishJSON(m.topics.ControlState(), v, true)
}

// ErrorLogChanged publishes the retained error-log snapshot.
func (m *MQTT) ErrorLogChanged(s errorlog.Snapshot) error {
	return m.pub.PublishJSON(m.topics.ErrorLog(), s, true)
}

// PollerStatus publishes a poller status change.
func (m *MQTT) PollerStatus(s poller.Status) error {
	return m.pub.PublishJSON(m.topics.PollerStatus(), s, false)
}

// PointWriter queues points for a time-series database. Both
// *influxdb.Client and *tsdb.Client satisfy it.
type PointWriter interface {
	WriteSample(kind string, id int, name string, rigTime, value float64, at time.Time)
	WriteControlState(state string, code int, experiment, user string)
}

// reanchorAfter is how far behind wall-clock time the newest sample may
// map before the rig clock is assumed to have restarted.
const reanchorAfter = 10 * time.Minute

// TimeSeries writes samples and control transitions to a PointWriter.
// Writes are buffered by the client, so errors surface through its own
// error callback rather than here.
type TimeSeries struct {
	w   PointWriter
	now func() time.Time

	mu     sync.Mutex
	origin time.Time // wall-clock time of rig time zero
}

// NewTimeSeries creates a time-series adapter.
func NewTimeSeries(w PointWriter) *TimeSeries {
	return &TimeSeries{w: w, now: time.Now}
}

// WriteSamples queues each sample at the wall-clock time matching its rig
// time. The first batch anchors the rig clock so its newest sample lands
// at now; every later sample keeps its own offset from that anchor.
func (ts *TimeSeries) WriteSamples(_ context.Context, dev device.Device, samples []series.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	origin := ts.anchor(samples[len(samples)-1].T)
	for _, s := range samples {
		ts.w.WriteSample(string(dev.Kind), dev.ID, dev.Name, s.T, s.V, origin.Add(rigDuration(s.T)))
	}
	return nil
}

// anchor returns the wall-clock origin of the rig clock, setting it on
// first use and again when latest maps far into the past (rig restart).
func (ts *TimeSeries) anchor(latest float64) time.Time {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	if ts.origin.IsZero() || ts.origin.Add(rigDuration(latest)).Before(now.Add(-reanchorAfter)) {
		ts.origin = now.Add(-rigDuration(latest))
	}
	return ts.origin
}

func rigDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// ControlChanged queues a control transition.
func (ts *TimeSeries) ControlChanged(v control.View) error {
	ts.w.WriteControlState(string(v.State), int(v.Code), v.Experiment, v.User)
	return nil
}
