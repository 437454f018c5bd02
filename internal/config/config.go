// Package config implements the INI-style configuration loader
// (§3.3/§6 of SPEC_FULL.md): sections `server`, `logging`, `network`,
// `lazyfree`, `database`. Deliberately a small hand-rolled parser -
// spec.md places this out of core scope as an external collaborator,
// and no repo in the retrieved pack imports an INI/TOML/YAML library
// at this scale, so there is nothing to wire instead.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rhino-rox/rhino-rox/internal/logging"
	"github.com/rhino-rox/rhino-rox/internal/rrerr"
)

// cronMaxFrequency mirrors SERVER_CRON_MAX_FREQUENCY from rr_config.c:
// the cron loop can't usefully run faster than 1000 Hz.
const cronMaxFrequency = 1000

// Config holds every setting the INI file can carry, with the
// teacher-observed defaults already applied by Default.
type Config struct {
	Server   Server
	Logging  Logging
	Network  Network
	Lazyfree Lazyfree
	Database Database
}

// Server holds the `[server]` section.
type Server struct {
	MaxClients        int
	CronFrequency     int
	MaxMemory         int64
	PidFile           string
	UnixDomainSocket  string
	UnixDomainPerm    uint32
}

// Logging holds the `[logging]` section.
type Logging struct {
	LogLevel logging.Level
	LogFile  string
}

// Network holds the `[network]` section.
type Network struct {
	Port       int
	Bind       string
	TCPBacklog int
}

// Lazyfree holds the `[lazyfree]` section.
type Lazyfree struct {
	ServerDel bool
}

// Database holds the `[database]` section.
type Database struct {
	MaxDBs int
}

// Default returns the configuration used when no INI file overrides a
// value - chosen to match the original's own compiled-in defaults.
func Default() *Config {
	return &Config{
		Server: Server{
			MaxClients:    10000,
			CronFrequency: 10,
			MaxMemory:     0,
			UnixDomainPerm: 0755,
		},
		Logging: Logging{
			LogLevel: logging.LevelInfo,
		},
		Network: Network{
			Port:       6969,
			Bind:       "0.0.0.0",
			TCPBacklog: 511,
		},
		Database: Database{
			MaxDBs: 16,
		},
	}
}

// Load reads and parses an INI file at path into a Config seeded with
// Default()'s values. An unknown section/key or an out-of-range value
// is a fatal configuration error (rr_config_load's handler returns 0
// on the first bad line).
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rrerr.New("config.Load", rrerr.CodeFatalInit, err.Error())
	}
	defer f.Close()

	cfg := Default()
	section := ""
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, ";") || strings.HasPrefix(text, "#") {
			continue
		}
		if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
			section = strings.TrimSpace(text[1 : len(text)-1])
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fatalf(path, line, "malformed line %q", text)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := cfg.apply(section, key, value); err != nil {
			return nil, fatalf(path, line, "%s", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, rrerr.New("config.Load", rrerr.CodeFatalInit, err.Error())
	}
	return cfg, nil
}

func fatalf(path string, line int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return rrerr.New("config.Load", rrerr.CodeFatalInit, fmt.Sprintf("%s:%d: %s", path, line, msg))
}

func (c *Config) apply(section, key, value string) error {
	switch {
	case section == "server" && key == "max_clients":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for max_clients")
		}
		c.Server.MaxClients = n
	case section == "server" && key == "cron_frequency":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > cronMaxFrequency {
			return fmt.Errorf("invalid value for cron_frequency")
		}
		c.Server.CronFrequency = n
	case section == "server" && key == "max_memory":
		n, err := memtoll(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_memory")
		}
		c.Server.MaxMemory = n
	case section == "server" && key == "pidfile":
		c.Server.PidFile = value
	case section == "server" && key == "unix_domain_socket":
		c.Server.UnixDomainSocket = value
	case section == "server" && key == "unix_domain_perm":
		n, err := strconv.ParseUint(value, 8, 32)
		if err != nil {
			return fmt.Errorf("invalid value for unix_domain_perm")
		}
		c.Server.UnixDomainPerm = uint32(n)
	case section == "logging" && key == "log_level":
		level, ok := parseLogLevel(value)
		if !ok {
			return fmt.Errorf("invalid value for log_level")
		}
		c.Logging.LogLevel = level
	case section == "logging" && key == "log_file":
		c.Logging.LogFile = value
	case section == "network" && key == "port":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 65535 {
			return fmt.Errorf("invalid value for port")
		}
		c.Network.Port = n
	case section == "network" && key == "bind":
		c.Network.Bind = value
	case section == "network" && key == "tcp_backlog":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for tcp_backlog")
		}
		c.Network.TCPBacklog = n
	case section == "lazyfree" && key == "server_del":
		n, err := strconv.Atoi(value)
		if err != nil || (n != 0 && n != 1) {
			return fmt.Errorf("invalid value for server_del")
		}
		c.Lazyfree.ServerDel = n == 1
	case section == "database" && key == "max_dbs":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid value for max_dbs")
		}
		c.Database.MaxDBs = n
	default:
		return fmt.Errorf("unknown item: %q in section: [%s]", key, section)
	}
	return nil
}

var logLevelNames = map[string]logging.Level{
	"debug":    logging.LevelDebug,
	"info":     logging.LevelInfo,
	"warning":  logging.LevelWarning,
	"error":    logging.LevelError,
	"critical": logging.LevelCritical,
}

func parseLogLevel(s string) (logging.Level, bool) {
	l, ok := logLevelNames[strings.ToLower(s)]
	return l, ok
}

// memtoll converts a string like "1gb" into a byte count, mirroring
// rr_config.c's memtoll: an optional unit suffix (b, k, kb, m, mb, g,
// gb; case-insensitive) multiplies the leading integer.
func memtoll(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	i := 0
	if s[i] == '-' {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	digits, unit := s[:i], strings.ToLower(s[i:])

	var mul int64
	switch unit {
	case "", "b":
		mul = 1
	case "k":
		mul = 1000
	case "kb":
		mul = 1024
	case "m":
		mul = 1000 * 1000
	case "mb":
		mul = 1024 * 1024
	case "g":
		mul = 1000 * 1000 * 1000
	case "gb":
		mul = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown unit %q", unit)
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mul, nil
}
