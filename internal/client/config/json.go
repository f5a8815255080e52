package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mkuzmins/homeboard/internal/flagx"
	"github.com/mkuzmins/homeboard/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. timex.Duration accepts both "5m" strings and integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	ChannelEndpointAddr string         `json:"channel_endpoint_addr"`
	Login               string         `json:"login"`
	LocalDBPath         string         `json:"local_db_path"`
	PollInterval        timex.Duration `json:"poll_interval"`
	DriveTimeURL        string         `json:"drive_time_url"`
	DriveTimeThreshold  int            `json:"drive_time_threshold"`
	WeatherURL          string         `json:"weather_url"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config command-line flags. If no flag is set, no JSON file is loaded.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.ServerEndpointAddr = c.ServerEndpointAddr
	config.ChannelEndpointAddr = c.ChannelEndpointAddr
	config.Login = c.Login
	config.LocalDBPath = c.LocalDBPath
	config.PollInterval = time.Duration(c.PollInterval.Duration)
	config.DriveTimeURL = c.DriveTimeURL
	config.DriveTimeThreshold = c.DriveTimeThreshold
	config.WeatherURL = c.WeatherURL
}
