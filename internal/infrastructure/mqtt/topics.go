package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix roots every rigdash topic unless config overrides it.
const DefaultTopicPrefix = "rigdash"

// Topics builds rigdash topic names under a prefix.
//
//	topics := mqtt.NewTopics("rigdash")
//	topics.Series("sensor", 3) // "rigdash/series/sensor/3"
type Topics struct {
	prefix string
}

// NewTopics returns builders rooted at prefix. Surrounding slashes are
// trimmed; an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// Status is the retained online/offline topic, also used for the LWT.
//
// Example: rigdash/status
func (t Topics) Status() string {
	return t.Prefix() + "/status"
}

// ControlState is the retained experiment control view.
//
// Example: rigdash/control/state
func (t Topics) ControlState() string {
	return t.Prefix() + "/control/state"
}

// Series carries newly appended samples for one device.
//
// Example: rigdash/series/sensor/3
func (t Topics) Series(kind string, id int) string {
	return fmt.Sprintf("%s/series/%s/%d", t.Prefix(), kind, id)
}

// ErrorLog is the retained rig error-log text.
//
// Example: rigdash/errorlog
func (t Topics) ErrorLog() string {
	return t.Prefix() + "/errorlog"
}

// PollerStatus carries poller session status changes.
//
// Example: rigdash/poller/status
func (t Topics) PollerStatus() string {
	return t.Prefix() + "/poller/status"
}

// Command is an inbound command topic, e.g. rigdash/command/emergency-stop.
func (t Topics) Command(name string) string {
	return t.Prefix() + "/command/" + name
}

// AllSeries matches every series topic.
//
// Pattern: rigdash/series/+/+
func (t Topics) AllSeries() string {
	return t.Prefix() + "/series/+/+"
}

// All matches every rigdash topic.
func (t Topics) All() string {
	return t.Prefix() + "/#"
}
