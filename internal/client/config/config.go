// Package config handles configuration for the homeboard client, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the homeboard client.
//
// Fields:
//   - ServerEndpointAddr: base URL of the backend REST endpoint.
//   - ChannelEndpointAddr: base URL of the channel websocket endpoint.
//   - Login: principal to log in as.
//   - LocalDBPath: path to the local SQLite database (timers, due events).
//   - PollInterval: full-refresh fallback cadence when no events arrive.
//   - DriveTimeURL / DriveTimeThreshold: commute feed endpoint and the
//     minutes-of-delay level that raises an alert. Empty URL disables it.
//   - WeatherURL: weather alert feed endpoint. Empty disables it.
type Config struct {
	ServerEndpointAddr  string
	ChannelEndpointAddr string
	Login               string
	LocalDBPath         string
	PollInterval        time.Duration
	DriveTimeURL        string
	DriveTimeThreshold  int
	WeatherURL          string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.ChannelEndpointAddr = "ws://127.0.0.1:8080"
	c.Login = ""
	c.LocalDBPath = "homeboard.db"
	c.PollInterval = 5 * time.Minute
	c.DriveTimeURL = ""
	c.DriveTimeThreshold = 45
	c.WeatherURL = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
