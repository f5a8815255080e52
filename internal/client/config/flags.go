package config

import (
	"flag"
	"os"
	"time"

	"github.com/mkuzmins/homeboard/internal/flagx"
)

// parseFlags populates selected client Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   server base URL (e.g., "http://127.0.0.1:8080")
//	-e string   channel websocket base URL (e.g., "ws://127.0.0.1:8080")
//	-l string   login
//	-f string   local SQLite database path
//	-i int      poll fallback interval, minutes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-e", "-l", "-f", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ServerEndpointAddr, "a", config.ServerEndpointAddr, "server base URL")
	fs.StringVar(&config.ChannelEndpointAddr, "e", config.ChannelEndpointAddr, "channel websocket base URL")
	fs.StringVar(&config.Login, "l", config.Login, "login")
	fs.StringVar(&config.LocalDBPath, "f", config.LocalDBPath, "local database path")

	pollInterval := fs.Int("i", int(config.PollInterval.Minutes()), "poll_interval (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PollInterval = time.Duration(*pollInterval) * time.Minute
}
