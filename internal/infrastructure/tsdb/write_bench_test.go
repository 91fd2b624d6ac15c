package tsdb

import (
	"testing"
	"time"
)

func BenchmarkFormatLineProtocol_Sample(b *testing.B) {
	tags := map[string]string{"kind": "sensor", "device_id": "3", "name": "strain 3"}
	fields := map[string]any{"value": 0.0413, "rig_time": 1523.25}
	ts := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	for b.Loop() {
		formatLineProtocol(MeasurementSamples, tags, fields, ts)
	}
}
