package mqtt

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
)

func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "rigdash-test",
	}
}

// connectOrSkip connects to a local broker, skipping when none is running.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 500*time.Millisecond)
	if err != nil {
		t.Skip("no MQTT broker on 127.0.0.1:1883")
	}
	conn.Close()

	client, err := Connect(testConfig(clientID))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // test cleanup
	return client
}

func TestTopics(t *testing.T) {
	topics := NewTopics("/lab/rig1/")
	tests := []struct {
		got  string
		want string
	}{
		{topics.Status(), "lab/rig1/status"},
		{topics.ControlState(), "lab/rig1/control/state"},
		{topics.Series("sensor", 3), "lab/rig1/series/sensor/3"},
		{topics.ErrorLog(), "lab/rig1/errorlog"},
		{topics.PollerStatus(), "lab/rig1/poller/status"},
		{topics.Command("emergency-stop"), "lab/rig1/command/emergency-stop"},
		{topics.AllSeries(), "lab/rig1/series/+/+"},
		{topics.All(), "lab/rig1/#"},
		{NewTopics("").ControlState(), "rigdash/control/state"},
		{Topics{}.Status(), "rigdash/status"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestStatusPayload(t *testing.T) {
	p := statusPayload("offline", "rigdash", "graceful_shutdown")
	for _, want := range []string{`"status":"offline"`, `"client_id":"rigdash"`, `"reason":"graceful_shutdown"`, `"timestamp":`} {
		if !strings.Contains(p, want) {
			t.Errorf("payload %s missing %s", p, want)
		}
	}
	if strings.Contains(statusPayload("online", "x", ""), "reason") {
		t.Error("online payload should not carry a reason")
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	if c.IsConnected() {
		t.Fatal("zero client reports connected")
	}
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish", c.Publish("a", nil, 1, false), ErrNotConnected},
		{"publish empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("a", nil, 3, false), ErrInvalidQoS},
		{"publish too large", c.Publish("a", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish json", c.PublishJSON("a", map[string]int{"v": 1}, false), ErrNotConnected},
		{"publish json unencodable", c.PublishJSON("a", make(chan int), false), ErrPublishFailed},
		{"subscribe", c.Subscribe("a", 1, noop), ErrNotConnected},
		{"subscribe nil handler", c.Subscribe("a", 1, nil), ErrSubscribeFailed},
		{"subscribe empty topic", c.Subscribe("", 1, noop), ErrInvalidTopic},
		{"unsubscribe", c.Unsubscribe("a"), ErrNotConnected},
		{"health", c.HealthCheck(context.Background()), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if c.SubscriptionCount() != 0 || c.HasSubscription("a") {
		t.Error("failed subscribe should not be tracked")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the connect timeout")
	}
	cfg := testConfig("rigdash-test-refused")
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	sub := connectOrSkip(t, "rigdash-test-sub")
	pub := connectOrSkip(t, "rigdash-test-pub")

	received := make(chan string, 1)
	err := sub.Subscribe(sub.Topics().AllSeries(), 1, func(topic string, payload []byte) error {
		received <- topic + " " + string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !sub.HasSubscription(sub.Topics().AllSeries()) || sub.SubscriptionCount() != 1 {
		t.Error("subscription not tracked")
	}
	time.Sleep(100 * time.Millisecond)

	if err := pub.PublishJSON(pub.Topics().Series("sensor", 2), [][2]float64{{1, 5}}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "rigdash-test/series/sensor/2 [[1,5]]" {
			t.Errorf("received %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	if err := sub.Unsubscribe(sub.Topics().AllSeries()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if sub.SubscriptionCount() != 0 {
		t.Error("subscription still tracked after Unsubscribe")
	}
}

func TestHealthCheck_Connected(t *testing.T) {
	c := connectOrSkip(t, "rigdash-test-health")
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v", err)
	}
}
