// Package config handles loading and validating rigdash configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// RIGDASH_* environment variables. Validate reports every problem at once.
//
// Intervals are stored as integer milliseconds in the file (matching the
// cadence values the rig's web console has always used); Millis converts them.
//
// Usage:
//
//	cfg, err := config.Load("configs/rigdash.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Rig.BaseURL)
//
// Credentials (MQTT password, InfluxDB token) should be supplied through the
// environment rather than the file.
package config
