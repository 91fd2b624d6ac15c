package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line-protocol bodies sent to
// /api/v2/write.
type fakeInflux struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		f.mu.Lock()
		f.lines = append(f.lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func connect(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := influxdb.Connect(config.InfluxDBConfig{
		Enabled: true,
		URL:     srv.URL,
		Token:   "test-token",
		Org:     "rigdash",
		Bucket:  "rig",
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // test cleanup
	return c, fake
}

func TestConnect_Disabled(t *testing.T) {
	if _, err := influxdb.Connect(config.InfluxDBConfig{}); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(config.InfluxDBConfig{Enabled: true, URL: url})
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c, _ := connect(t)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	c.Close() //nolint:errcheck // closing early
	if err := c.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
}

func TestWriteSample(t *testing.T) {
	c, fake := connect(t)
	at := time.Unix(1_760_000_000, 0)

	c.WriteSample("sensor", 3, "strain3", 12.5, 0.25, at)
	c.WriteControlState("start", 0, "burst", "alice")

	lines := waitLines(t, c, fake, 2)
	var sample, control string
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "rig_samples,"):
			sample = l
		case strings.HasPrefix(l, "rig_control,"):
			control = l
		}
	}
	for _, want := range []string{"rig_samples,", "device_id=3", "kind=sensor", "name=strain3", "value=0.25", "rig_time=12.5"} {
		if !strings.Contains(sample, want) {
			t.Errorf("sample line %q missing %q", sample, want)
		}
	}
	if !strings.HasPrefix(control, "rig_control,state=start ") {
		t.Errorf("control line = %q", control)
	}
}

// waitLines flushes until the server has seen n lines; the write API hands
// batches to its sender asynchronously.
func waitLines(t *testing.T, c *influxdb.Client, fake *fakeInflux, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		c.Flush()
		lines := fake.Lines()
		if len(lines) >= n {
			return lines
		}
		if time.Now().After(deadline) {
			t.Fatalf("server saw %d lines, want %d: %q", len(lines), n, lines)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWriteAfterCloseIsDropped(t *testing.T) {
	c, fake := connect(t)
	c.Close() //nolint:errcheck // closing early

	c.WriteSample("sensor", 1, "g", 1, 1, time.Now())
	c.Flush()
	if n := len(fake.Lines()); n != 0 {
		t.Errorf("wrote %d lines after Close", n)
	}

	var nilClient *influxdb.Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
