package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for rigdash.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Rig       RigConfig       `yaml:"rig"`
	Poller    PollerConfig    `yaml:"poller"`
	Control   ControlConfig   `yaml:"control"`
	PinTest   PinTestConfig   `yaml:"pintest"`
	ErrorLog  ErrorLogConfig  `yaml:"errorlog"`
	Chart     ChartConfig     `yaml:"chart"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	TSDB      TSDBConfig      `yaml:"tsdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RigConfig describes how to reach the rig's HTTP API.
type RigConfig struct {
	// BaseURL is the API root, e.g. "https://rig.local/api/".
	// Module names (sensors, control, pin...) are appended to it.
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request timeout in milliseconds.
	Timeout int `yaml:"timeout"`

	// InsecureTLS skips certificate verification (rigs ship self-signed certs).
	InsecureTLS bool `yaml:"insecure_tls"`
}

// PollerConfig controls the data poller and the strain-gauge overview.
type PollerConfig struct {
	// Interval between rounds in milliseconds.
	Interval int `yaml:"interval"`

	// StoreWindow is how many seconds of history each live series keeps.
	// Zero keeps everything.
	StoreWindow float64 `yaml:"store_window"`

	// Overview configures the decimated strain-gauge overview.
	Overview OverviewConfig `yaml:"overview"`
}

// OverviewConfig controls the strain-gauge overview graph.
type OverviewConfig struct {
	Enabled   bool    `yaml:"enabled"`
	SensorIDs []int   `yaml:"sensor_ids"`
	Interval  int     `yaml:"interval"`
	Lookback  float64 `yaml:"lookback"`
	Points    int     `yaml:"points"`
}

// ControlConfig controls the experiment-state monitor.
type ControlConfig struct {
	// Interval is the nominal status poll interval in milliseconds.
	Interval int `yaml:"interval"`

	// RetryInterval is used after a failed poll, in milliseconds.
	RetryInterval int `yaml:"retry_interval"`
}

// PinTestConfig controls pin watchers.
type PinTestConfig struct {
	Enabled         bool `yaml:"enabled"`
	RefreshRate     int  `yaml:"refresh_rate"`
	IdleRefreshRate int  `yaml:"idle_refresh_rate"`
}

// ErrorLogConfig controls the error-log panel poller.
type ErrorLogConfig struct {
	Enabled       bool `yaml:"enabled"`
	Interval      int  `yaml:"interval"`
	RetryInterval int  `yaml:"retry_interval"`
}

// ChartConfig controls server-side chart rendering.
type ChartConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// DatabaseConfig contains SQLite archive settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	// Retention is how many hours of archived samples are kept. Zero keeps all.
	Retention int `yaml:"retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains the local console HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir serves the browser console from disk instead of the
	// embedded copy. Empty uses the embedded assets.
	PanelDir string `yaml:"panel_dir"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TSDBConfig contains VictoriaMetrics connection settings.
type TSDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	// Color enables ANSI colours for the text format.
	Color bool `yaml:"color"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern RIGDASH_SECTION_KEY,
// for example RIGDASH_RIG_BASE_URL or RIGDASH_API_PORT.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// It is used when no config file is given.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Rig: RigConfig{
			BaseURL: "http://localhost/api/",
			Timeout: 5000,
		},
		Poller: PollerConfig{
			Interval:    1000,
			StoreWindow: 0,
			Overview: OverviewConfig{
				SensorIDs: []int{0, 1, 2, 3},
				Interval:  500,
				Lookback:  20,
				Points:    100,
			},
		},
		Control: ControlConfig{
			Interval:      2000,
			RetryInterval: 4000,
		},
		PinTest: PinTestConfig{
			RefreshRate:     750,
			IdleRefreshRate: 1500,
		},
		ErrorLog: ErrorLogConfig{
			Enabled:       true,
			Interval:      1000,
			RetryInterval: 1500,
		},
		Chart: ChartConfig{
			Width:  1024,
			Height: 480,
		},
		Database: DatabaseConfig{
			Path:        "./data/rigdash.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   72,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rigdash",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "rigdash",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Org:    "rigdash",
			Bucket: "rig",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies RIGDASH_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RIGDASH_RIG_BASE_URL"); v != "" {
		cfg.Rig.BaseURL = v
	}
	if v := os.Getenv("RIGDASH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RIGDASH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RIGDASH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RIGDASH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("RIGDASH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("RIGDASH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("RIGDASH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("RIGDASH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Rig.BaseURL == "" {
		errs = append(errs, "rig.base_url is required")
	} else if u, err := url.Parse(c.Rig.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "rig.base_url must be an absolute http(s) URL")
	}
	if c.Rig.Timeout <= 0 {
		errs = append(errs, "rig.timeout must be positive")
	}

	if c.Poller.Interval <= 0 {
		errs = append(errs, "poller.interval must be positive")
	}
	if c.Poller.StoreWindow < 0 {
		errs = append(errs, "poller.store_window cannot be negative")
	}
	if c.Control.Interval <= 0 || c.Control.RetryInterval <= 0 {
		errs = append(errs, "control intervals must be positive")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the archive is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.TSDB.Enabled && c.TSDB.URL == "" {
		errs = append(errs, "tsdb.url is required when tsdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Millis converts a millisecond config value to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
