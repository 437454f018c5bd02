package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/rhino-rox/rhino-rox/internal/config"
	"github.com/rhino-rox/rhino-rox/internal/logging"
	"github.com/rhino-rox/rhino-rox/internal/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the rhino-rox.conf INI file")
		port       = flag.Int("port", -1, "override network.port")
		bind       = flag.String("bind", "", "override network.bind")
		logLevel   = flag.String("loglevel", "", "override logging.log_level (debug|info|warning|error|critical)")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rhino-rox-server: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if *port >= 0 {
		cfg.Network.Port = *port
	}
	if *bind != "" {
		cfg.Network.Bind = *bind
	}
	if *logLevel != "" {
		cfg.Logging.LogLevel = logging.LevelFromString(*logLevel)
	}

	s, err := server.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rhino-rox-server: %v\n", err)
		os.Exit(1)
	}

	if err := s.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "rhino-rox-server: %v\n", err)
		os.Exit(1)
	}
}
