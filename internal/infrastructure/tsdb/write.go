package tsdb

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Measurement names. VictoriaMetrics exposes fields as
// {measurement}_{field}, e.g. rig_samples_value.
const (
	MeasurementSamples = "rig_samples"
	MeasurementControl = "rig_control"
)

// WriteSample buffers one rig sample. rigTime is the rig clock in seconds;
// at is the wall-clock timestamp of the point.
func (c *Client) WriteSample(kind string, id int, name string, rigTime, value float64, at time.Time) {
	c.addLine(formatLineProtocol(MeasurementSamples,
		map[string]string{"kind": kind, "device_id": strconv.Itoa(id), "name": name},
		map[string]any{"value": value, "rig_time": rigTime},
		at))
}

// WriteControlState buffers a control-state transition.
func (c *Client) WriteControlState(state string, code int, experiment, user string) {
	c.addLine(formatLineProtocol(MeasurementControl,
		map[string]string{"state": state},
		map[string]any{"code": code, "experiment": experiment, "user": user},
		time.Now()))
}

// WritePointWithTime buffers an arbitrary point.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	c.addLine(formatLineProtocol(measurement, tags, fields, ts))
}

// formatLineProtocol renders
//
//	measurement,tag=v,... field=v,... timestamp_ns
//
// with tags and fields sorted by key.
func formatLineProtocol(measurement string, tags map[string]string, fields map[string]any, t time.Time) string {
	var b strings.Builder
	b.WriteString(escapeMeasurement(measurement))

	for _, k := range sortedKeys(tags) {
		if tags[k] == "" {
			continue // empty tag values are invalid line protocol
		}
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(tags[k]))
	}

	b.WriteByte(' ')
	for i, k := range sortedKeys(fields) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(formatField(fields[k]))
	}

	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(t.UnixNano(), 10))
	return b.String()
}

func formatField(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val) + "i"
	case int64:
		return strconv.FormatInt(val, 10) + "i"
	case bool:
		return strconv.FormatBool(val)
	case string:
		return strconv.Quote(val)
	default:
		return strconv.Quote("")
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// escapeTag backslash-escapes commas, equals signs and spaces, and strips
// newlines so a value cannot start a new line.
func escapeTag(s string) string {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	return strings.NewReplacer(" ", `\ `, ",", `\,`, "=", `\=`).Replace(s)
}

func escapeMeasurement(s string) string {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	return strings.NewReplacer(" ", `\ `, ",", `\,`).Replace(s)
}
