package tsdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultWriteTimeout   = 5 * time.Second
	defaultBatchSize      = 1000
	defaultFlushSeconds   = 1
)

// Client writes line protocol to VictoriaMetrics and runs PromQL queries
// against it. Lines are buffered and sent as one POST to /write when the
// batch fills or the flush interval ticks. Safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client

	connected bool
	mu        sync.RWMutex
	onError   func(err error)

	batch     []string
	batchMu   sync.Mutex
	batchSize int
	flushTick *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup
}

// Connect checks GET /health and starts the background flusher. It returns
// ErrDisabled when cfg.Enabled is false.
func Connect(ctx context.Context, cfg config.TSDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushSeconds
	}

	c := &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: defaultWriteTimeout},
		batch:      make([]string, 0, batchSize),
		batchSize:  batchSize,
		done:       make(chan struct{}),
		connected:  true,
	}

	healthCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := c.HealthCheck(healthCtx); err != nil {
		return nil, fmt.Errorf("%w: health check failed: %w", ErrConnectionFailed, err)
	}

	c.flushTick = time.NewTicker(time.Duration(flushInterval) * time.Second)
	c.wg.Add(1)
	go c.flushLoop()

	return c, nil
}

func (c *Client) flushLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.flushTick.C:
			c.Flush()
		case <-c.done:
			return
		}
	}
}

// Close stops the flusher and sends whatever is still buffered.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()
	if !wasConnected {
		return nil
	}

	if c.flushTick != nil {
		c.flushTick.Stop()
		close(c.done)
		c.wg.Wait()
	}
	c.Flush()
	return nil
}

// HealthCheck calls GET /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for reuse

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tsdb health check: status %d", resp.StatusCode)
	}
	return nil
}

// IsConnected returns the last known state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets the callback for failed batch flushes.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

func (c *Client) addLine(line string) {
	if !c.IsConnected() {
		return
	}

	c.batchMu.Lock()
	c.batch = append(c.batch, line)
	full := len(c.batch) >= c.batchSize
	c.batchMu.Unlock()

	if full {
		c.Flush()
	}
}

// Flush sends all buffered lines in one request.
func (c *Client) Flush() {
	c.batchMu.Lock()
	if len(c.batch) == 0 {
		c.batchMu.Unlock()
		return
	}
	lines := c.batch
	c.batch = make([]string, 0, c.batchSize)
	c.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()

	body := bytes.NewBufferString(strings.Join(lines, "\n"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/write", body)
	if err != nil {
		c.reportError(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		return
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.reportError(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for reuse

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		c.reportError(fmt.Errorf("%w: HTTP %d", ErrWriteFailed, resp.StatusCode))
	}
}

func (c *Client) reportError(err error) {
	c.mu.RLock()
	callback := c.onError
	c.mu.RUnlock()
	if callback != nil {
		callback(err)
	}
}
