// Package rhinorox is the public API for embedding a rhino-rox
// server in a Go program: build an Options, call NewServer, call Run.
// It mirrors how the teacher's root package (ublk) exposes a small
// Device/Options/Metrics surface over its internal/* packages,
// adapted here from block-device lifecycle management to an
// in-process key-value server.
package rhinorox

import (
	"fmt"

	"github.com/rhino-rox/rhino-rox/internal/config"
	"github.com/rhino-rox/rhino-rox/internal/logging"
	"github.com/rhino-rox/rhino-rox/internal/server"
)

// Options configures a Server, playing the role the teacher's
// DeviceParams/Options pair plays for a ublk device: a flat struct of
// knobs with a DefaultOptions constructor, optionally seeded from an
// on-disk INI file before field overrides are applied.
type Options struct {
	// ConfigPath, if non-empty, is loaded with config.Load before any
	// other field in Options is applied on top of it. Leave empty to
	// start from config.Default().
	ConfigPath string

	Bind           string
	Port           int
	MaxClients     int
	MaxMemory      int64
	MaxDBs         int
	CronFrequency  int
	TCPBacklog     int
	LazyFreeDel    bool
	LogLevel       string // debug|info|warning|error|critical; empty keeps the loaded/default level
	LogFile        string

	// Observer, if non-nil, receives per-command telemetry instead of
	// the Server's own built-in Metrics. Leave nil to use Metrics().
	Observer Observer
}

// DefaultOptions returns the teacher-observed defaults (rr.conf's
// documented defaults, per config.Default): port 6969, 10000 max
// clients, 16 databases, hz 10.
func DefaultOptions() Options {
	d := config.Default()
	return Options{
		Bind:          d.Network.Bind,
		Port:          d.Network.Port,
		MaxClients:    d.Server.MaxClients,
		MaxMemory:     d.Server.MaxMemory,
		MaxDBs:        d.Database.MaxDBs,
		CronFrequency: d.Server.CronFrequency,
		TCPBacklog:    d.Network.TCPBacklog,
		LazyFreeDel:   d.Lazyfree.ServerDel,
	}
}

// toConfig resolves Options into an internal/config.Config, loading
// ConfigPath first (if set) so explicit Options fields always win over
// whatever the INI file says, the same layering cmd/rhino-rox-server's
// CLI flags use over the loaded file.
func (o Options) toConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("rhinorox: %w", err)
		}
		cfg = loaded
	}

	if o.Bind != "" {
		cfg.Network.Bind = o.Bind
	}
	if o.Port != 0 {
		cfg.Network.Port = o.Port
	}
	if o.MaxClients != 0 {
		cfg.Server.MaxClients = o.MaxClients
	}
	if o.MaxMemory != 0 {
		cfg.Server.MaxMemory = o.MaxMemory
	}
	if o.MaxDBs != 0 {
		cfg.Database.MaxDBs = o.MaxDBs
	}
	if o.CronFrequency != 0 {
		cfg.Server.CronFrequency = o.CronFrequency
	}
	if o.TCPBacklog != 0 {
		cfg.Network.TCPBacklog = o.TCPBacklog
	}
	cfg.Lazyfree.ServerDel = o.LazyFreeDel
	if o.LogLevel != "" {
		cfg.Logging.LogLevel = logging.LevelFromString(o.LogLevel)
	}
	if o.LogFile != "" {
		cfg.Logging.LogFile = o.LogFile
	}

	return cfg, nil
}

// Server wraps internal/server.Server with the Metrics wiring
// rhinorox adds on top: the embedding program gets Run/Shutdown/Close
// plus a Metrics snapshot, without reaching into internal/*.
type Server struct {
	inner   *server.Server
	metrics *Metrics
}

// NewServer builds a Server from opts but does not open any sockets;
// call Run for that.
func NewServer(opts Options) (*Server, error) {
	cfg, err := opts.toConfig()
	if err != nil {
		return nil, err
	}

	s, err := server.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("rhinorox: %w", err)
	}

	rs := &Server{inner: s}
	if opts.Observer != nil {
		s.SetObserver(opts.Observer)
	} else {
		rs.metrics = NewMetrics()
		s.SetObserver(NewMetricsObserver(rs.metrics))
	}
	return rs, nil
}

// Run blocks serving connections until Shutdown is called (from
// another goroutine, or a SIGTERM/SIGINT the embedding process
// receives) or an unrecoverable error occurs.
func (s *Server) Run() error {
	return s.inner.Run()
}

// Shutdown requests that Run return after its current reactor
// iteration.
func (s *Server) Shutdown() {
	s.inner.Shutdown()
}

// Close releases resources Run doesn't already release on return
// (the lazy-free worker pool, the reactor's epoll fd). Safe to call
// whether or not Run was ever invoked.
func (s *Server) Close() error {
	return s.inner.Close()
}

// Metrics returns the Server's built-in metrics collector, or nil if
// NewServer was given a custom Options.Observer instead.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
