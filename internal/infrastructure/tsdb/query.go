package tsdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxResponseSize = 10 << 20

// QueryRange runs a PromQL range query and returns the raw Prometheus API
// response.
func (c *Client) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) (json.RawMessage, error) {
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidQuery)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: step must be positive", ErrInvalidQuery)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidQuery)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("start", formatUnixSeconds(start))
	params.Set("end", formatUnixSeconds(end))
	params.Set("step", strconv.FormatFloat(step.Seconds(), 'f', -1, 64))
	return c.doQuery(ctx, "/api/v1/query_range", params)
}

// QueryInstant runs a PromQL instant query.
func (c *Client) QueryInstant(ctx context.Context, query string) (json.RawMessage, error) {
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidQuery)
	}

	params := url.Values{}
	params.Set("query", query)
	return c.doQuery(ctx, "/api/v1/query", params)
}

// SampleQuery is the PromQL selector for one device's archived values.
func SampleQuery(kind string, id int) string {
	return fmt.Sprintf(`%s_value{kind=%q,device_id="%d"}`, MeasurementSamples, kind, id)
}

func (c *Client) doQuery(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query failed: HTTP %d", resp.StatusCode)
	}
	return json.RawMessage(body), nil
}

func formatUnixSeconds(t time.Time) string {
	seconds := float64(t.UnixNano()) / float64(time.Second)
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}
