package rig

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
)

const (
	// maxResponseSize bounds a single reply; full-history data pulls are the
	// largest responses the rig produces.
	maxResponseSize = 64 << 20

	defaultTimeout = 5 * time.Second
)

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Client talks to the rig's HTTP JSON API.
//
// Every module is a GET on BaseURL+module with query parameters. JSON replies
// carry an integer status (1 ok, negative error); some pin and log replies
// are plain text.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger Logger
}

// New builds a client from the rig section of the config.
func New(cfg config.RigConfig) (*Client, error) {
	timeout := config.Millis(cfg.Timeout)
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		//nolint:gosec // Rigs serve self-signed certificates; opt-in only.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return NewWithHTTPClient(cfg.BaseURL, &http.Client{
		Timeout:   timeout,
		Transport: transport,
	})
}

// NewWithHTTPClient builds a client around an existing http.Client.
func NewWithHTTPClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing rig base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("rig base url must be absolute: %q", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: u, http: hc, logger: noopLogger{}}, nil
}

// SetLogger sets the logger for request tracing.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// moduleURL builds the absolute URL for a module and its parameters.
func (c *Client) moduleURL(module string, params url.Values) string {
	u := *c.base
	u.Path += module
	u.RawQuery = params.Encode()
	return u.String()
}

// get performs one request and returns the body and its media type.
func (c *Client) get(ctx context.Context, module string, params url.Values) ([]byte, string, error) {
	target := c.moduleURL(module, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json, text/plain")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrTransport, module, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading %s reply: %w", ErrTransport, module, err)
	}

	c.logger.Debug("rig request",
		"module", module,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, "", fmt.Errorf("%w: %s: HTTP %d", ErrTransport, module, resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")) //nolint:errcheck // empty on failure
	return body, mediaType, nil
}

// getJSON performs a request, checks the status envelope and decodes into out.
// out may be nil when only the envelope matters.
func (c *Client) getJSON(ctx context.Context, module string, params url.Values, out any) error {
	body, _, err := c.get(ctx, module, params)
	if err != nil {
		return err
	}
	return decodeEnvelope(module, body, out)
}

func decodeEnvelope(module string, body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, module, err)
	}
	if env.Status == 0 {
		return fmt.Errorf("%w: %s: missing status", ErrMalformed, module)
	}
	if err := env.err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, module, err)
	}
	return nil
}

// Identify fetches the rig identity including the sensor and actuator names.
func (c *Client) Identify(ctx context.Context) (*Identity, error) {
	params := url.Values{}
	params.Set("sensors", "1")
	params.Set("actuators", "1")

	var id Identity
	if err := c.getJSON(ctx, "identify", params, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Data fetches samples for one device within rng.
func (c *Client) Data(ctx context.Context, kind Kind, id int, rng Range) (*Data, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("rig: unknown device kind %q", kind)
	}

	params := url.Values{}
	params.Set("id", strconv.Itoa(id))
	if rng.Start != nil {
		params.Set("start_time", formatFloat(*rng.Start))
	}
	if rng.End != nil {
		params.Set("end_time", formatFloat(*rng.End))
	}

	var data Data
	if err := c.getJSON(ctx, kind.Module(), params, &data); err != nil {
		return nil, err
	}
	if data.ID != id {
		data.ID = id
	}
	return &data, nil
}

// DataURL returns a direct download link for a device's data in the given
// format ("json", "tsv"), covering the whole experiment.
func (c *Client) DataURL(kind Kind, id int, format string) string {
	params := url.Values{}
	params.Set("id", strconv.Itoa(id))
	params.Set("start_time", "0")
	if format != "" {
		params.Set("format", format)
	}
	return c.moduleURL(kind.Module(), params)
}

// ErrorLog returns the rig's error log text.
func (c *Client) ErrorLog(ctx context.Context) (string, error) {
	body, mediaType, err := c.get(ctx, "errorlog", nil)
	if err != nil {
		return "", err
	}
	if mediaType == "application/json" || bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		if err := decodeEnvelope("errorlog", body, nil); err != nil {
			return "", err
		}
	}
	return string(body), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
