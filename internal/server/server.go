// Package server implements bootstrap, the cron loop, the listener,
// and shutdown (component M of SPEC_FULL.md): it wires together the
// reactor, the client manager, the command table and the keyspace,
// and is itself the command.Hooks implementation those pieces call
// back into.
//
// Grounded on original_source/src/rr_server.c's rr_server_t (listen
// fd, shutdown flag, served/rejected counters) and rr_main.c's startup
// sequence, following the teacher's backend.go/internal/ctrl shape:
// a struct wrapping raw fds plus the pieces it owns, created by one
// constructor function and torn down by one Close/Shutdown.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rhino-rox/rhino-rox/internal/bgtask"
	"github.com/rhino-rox/rhino-rox/internal/client"
	"github.com/rhino-rox/rhino-rox/internal/command"
	"github.com/rhino-rox/rhino-rox/internal/config"
	"github.com/rhino-rox/rhino-rox/internal/db"
	"github.com/rhino-rox/rhino-rox/internal/logging"
	"github.com/rhino-rox/rhino-rox/internal/reactor"
	"github.com/rhino-rox/rhino-rox/internal/rrerr"
)

// cronMaxFrequency mirrors SERVER_CRON_MAX_FREQUENCY (spec.md §4.M):
// the cron timer cannot usefully run faster than 1000 Hz.
const cronMaxFrequency = 1000

// defaultHz is used when the config doesn't set one explicitly (the
// config loader itself has no `hz` key yet; cron_frequency doubles as
// it per rr_config.c).
const defaultHz = 10

// defaultPidFile mirrors spec.md §4.M's stated default.
const defaultPidFile = "/var/run/rhino-rox.pid"

// Server owns every piece of process-wide state: the reactor, the
// listening socket, the client manager, the keyspace, and the lazy-
// free worker. It is not safe for concurrent use outside of the
// signal-driven shutdown flag, which is the one piece of state touched
// from another goroutine.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger

	reactor *reactor.Reactor
	clients *client.Manager
	table   *command.Table
	dbs     *db.Keyspace
	worker  *bgtask.Worker

	listenFd int

	shutdown  atomic.Bool
	cronLoops uint64
	startedAt time.Time

	pidFilePath string
}

// New builds a server from cfg but does not yet open sockets or start
// the reactor loop; call Run for that.
func New(cfg *config.Config) (*Server, error) {
	logger := logging.Default()
	logger.SetLevel(cfg.Logging.LogLevel)
	if cfg.Logging.LogFile != "" {
		f, err := os.OpenFile(cfg.Logging.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, rrerr.New("server.New", rrerr.CodeFatalInit, err.Error())
		}
		logger.SetOutput(f)
	}

	r, err := reactor.New(adjustedMaxClients(cfg, logger) + reservedFds)
	if err != nil {
		return nil, rrerr.New("server.New", rrerr.CodeFatalInit, err.Error())
	}

	dbs := db.NewKeyspace(cfg.Database.MaxDBs)
	worker := bgtask.NewWorker()

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		reactor:     r,
		dbs:         dbs,
		worker:      worker,
		listenFd:    -1,
		pidFilePath: firstNonEmpty(cfg.Server.PidFile, defaultPidFile),
	}
	s.table = command.BuildDefaultTable()

	defaultDB, err := dbs.DB(0)
	if err != nil {
		return nil, rrerr.New("server.New", rrerr.CodeFatalInit, err.Error())
	}
	s.clients = client.NewManager(adjustedMaxClients(cfg, logger), s.table, s, defaultDB)

	return s, nil
}

// reservedFds is spare room in the reactor's fd table for the listen
// socket and a future unix-domain listener, beyond max_clients.
const reservedFds = 32

// adjustedMaxClients applies the ulimit-adjustment rule from spec.md
// §4.M: try to raise RLIMIT_NOFILE to max_clients+32; if the kernel
// refuses, shrink max_clients to fit what was actually granted.
func adjustedMaxClients(cfg *config.Config, logger *logging.Logger) int {
	want := cfg.Server.MaxClients
	wantFiles := uint64(want + reservedFds)

	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		logger.Warning("getrlimit(NOFILE) failed, keeping configured max_clients", "error", err)
		return want
	}

	if rlim.Cur >= wantFiles {
		return want
	}

	target := rlim
	target.Cur = wantFiles
	if target.Max < wantFiles {
		target.Max = wantFiles
	}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &target); err != nil {
		adjusted := int(rlim.Cur) - reservedFds
		if adjusted < 1 {
			adjusted = 1
		}
		logger.Warning("setrlimit(NOFILE) refused, reducing max_clients",
			"requested", want, "adjusted", adjusted, "error", err)
		return adjusted
	}
	return want
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Run performs the full bootstrap sequence (signal handlers, listener,
// pidfile, cron timer) and then blocks in the reactor's event loop
// until Shutdown is requested or the loop errors.
func (s *Server) Run() error {
	s.installSignalHandlers()

	if err := s.listen(); err != nil {
		return err
	}
	defer unix.Close(s.listenFd)

	if err := s.writePidFile(); err != nil {
		s.logger.Warning("failed to write pidfile", "path", s.pidFilePath, "error", err)
	}
	defer os.Remove(s.pidFilePath)

	if err := s.reactor.AddFd(s.listenFd, reactor.Read, s.clients.AcceptReady, nil); err != nil {
		return rrerr.New("server.Run", rrerr.CodeFatalInit, err.Error())
	}

	hz := s.cfg.Server.CronFrequency
	if hz <= 0 {
		hz = defaultHz
	}
	if hz > cronMaxFrequency {
		hz = cronMaxFrequency
	}
	cronInterval := time.Second / time.Duration(hz)
	s.reactor.AddTimer(cronInterval, s.cron(cronInterval), nil)

	s.startedAt = time.Now()
	s.logger.Info("server started", "port", s.cfg.Network.Port, "max_clients", s.cfg.Server.MaxClients, "hz", hz)

	s.reactor.SetBeforePollHook(func(r *reactor.Reactor) {
		if s.shutdown.Load() {
			r.Stop()
		}
	})

	return s.reactor.RunForever()
}

// listen opens the TCP listener on cfg.Network.Bind/Port, grounded on
// rr_net_tcpserver: create socket, SO_REUSEADDR, bind, listen, leaving
// the fd non-blocking for the reactor to register.
func (s *Server) listen() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return rrerr.New("server.listen", rrerr.CodeFatalInit, err.Error())
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return rrerr.New("server.listen", rrerr.CodeFatalInit, err.Error())
	}

	addr, err := parseIPv4(s.cfg.Network.Bind)
	if err != nil {
		unix.Close(fd)
		return rrerr.New("server.listen", rrerr.CodeFatalInit, err.Error())
	}
	sa := &unix.SockaddrInet4{Port: s.cfg.Network.Port, Addr: addr}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return rrerr.New("server.listen", rrerr.CodeFatalInit, "bind: "+err.Error())
	}
	if err := unix.Listen(fd, s.cfg.Network.TCPBacklog); err != nil {
		unix.Close(fd)
		return rrerr.New("server.listen", rrerr.CodeFatalInit, "listen: "+err.Error())
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return rrerr.New("server.listen", rrerr.CodeFatalInit, err.Error())
	}

	s.listenFd = fd
	return nil
}

// parseIPv4 converts a dotted-quad bind address into the 4-byte form
// unix.SockaddrInet4 wants, treating "" and "0.0.0.0" the same
// (AI_PASSIVE's INADDR_ANY in rr_net_tcpserver).
func parseIPv4(bind string) ([4]byte, error) {
	if bind == "" {
		return [4]byte{}, nil
	}
	parts := strings.Split(bind, ".")
	if len(parts) != 4 {
		return [4]byte{}, fmt.Errorf("invalid bind address %q", bind)
	}
	var addr [4]byte
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return [4]byte{}, fmt.Errorf("invalid bind address %q", bind)
		}
		addr[i] = byte(n)
	}
	return addr, nil
}

func (s *Server) writePidFile() error {
	return os.WriteFile(s.pidFilePath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// installSignalHandlers mirrors spec.md §4.M: SIGHUP and SIGPIPE are
// ignored outright (a disconnected client shouldn't kill the process),
// SIGTERM/SIGINT set the shutdown flag the before-poll hook observes.
func (s *Server) installSignalHandlers() {
	signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for range ch {
			s.RequestShutdown()
		}
	}()
}

// cron returns the reactor.TimerCallback driving the periodic
// maintenance pass (spec.md §4.M): react to the shutdown flag, drain
// the async-close list, bump cronLoops. It
// reschedules itself every interval until the server is shutting down.
func (s *Server) cron(interval time.Duration) reactor.TimerCallback {
	return func(r *reactor.Reactor, ud any) int64 {
		s.cronLoops++
		closed := s.clients.DrainAsyncCloses(r)
		if closed > 0 {
			s.logger.Debugf("cron: drained %d async-closed clients", closed)
		}
		if s.shutdown.Load() {
			return 0
		}
		return interval.Milliseconds()
	}
}

// Shutdown sets the shutdown flag; the before-poll hook then stops the
// reactor loop at the start of its next iteration, and the listener is
// closed as Run returns. command.Hooks.RequestShutdown calls this via
// the `shutdown` command.
func (s *Server) Shutdown() {
	s.shutdown.Store(true)
}

// --- command.Hooks ---

// SelectDB implements command.Hooks for the `select` command.
func (s *Server) SelectDB(n int) (*db.DB, error) {
	return s.dbs.DB(n)
}

// FlushDB implements command.Hooks for the `flushdb` command,
// choosing sync or async deletion per the lazyfree.server_del config.
func (s *Server) FlushDB(d *db.DB) {
	d.Flush(s.cfg.Lazyfree.ServerDel, s.worker)
}

// ConfigGet implements command.Hooks for `config get <param>`,
// restored per SPEC_FULL.md §5.3.
func (s *Server) ConfigGet(param string) (string, bool) {
	switch param {
	case "maxclients":
		return strconv.Itoa(s.cfg.Server.MaxClients), true
	case "maxmemory":
		return strconv.FormatInt(s.cfg.Server.MaxMemory, 10), true
	case "hz":
		return strconv.Itoa(s.cfg.Server.CronFrequency), true
	case "port":
		return strconv.Itoa(s.cfg.Network.Port), true
	case "bind":
		return s.cfg.Network.Bind, true
	case "tcp-backlog":
		return strconv.Itoa(s.cfg.Network.TCPBacklog), true
	case "maxdbs":
		return strconv.Itoa(s.cfg.Database.MaxDBs), true
	case "lazyfree-server-del":
		return strconv.FormatBool(s.cfg.Lazyfree.ServerDel), true
	default:
		return "", false
	}
}

// ClientListText implements command.Hooks for the `client list`
// command, restored per SPEC_FULL.md §5.1: one line per connected
// client of the form "fd=<n> age=<s>".
func (s *Server) ClientListText() string {
	now := time.Now()
	out := ""
	for _, c := range s.clients.Clients() {
		age := int(now.Sub(c.CreatedAt).Seconds())
		out += fmt.Sprintf("fd=%d age=%d\n", c.Fd, age)
	}
	return out
}

// InfoSnapshot implements command.Hooks for the `info` command,
// grounded on rr_server_get_info(): a handful of server/memory stats
// formatted as "key:value" lines, one per line.
func (s *Server) InfoSnapshot() string {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	uptime := time.Since(s.startedAt).Seconds()
	return fmt.Sprintf(
		"rhino_rox_version:1.0.0\r\n"+
			"process_id:%d\r\n"+
			"uptime_in_seconds:%.0f\r\n"+
			"connected_clients:%d\r\n"+
			"served_clients:%d\r\n"+
			"rejected_clients:%d\r\n"+
			"cronloops:%d\r\n"+
			"used_memory:%d\r\n"+
			"max_clients:%d\r\n"+
			"max_dbs:%d\r\n",
		os.Getpid(), uptime,
		s.clients.Count(), s.clients.Served(), s.clients.Rejected(),
		s.cronLoops, mem.HeapAlloc,
		s.cfg.Server.MaxClients, s.cfg.Database.MaxDBs,
	)
}

// RequestShutdown implements command.Hooks for the `shutdown` command.
func (s *Server) RequestShutdown() {
	s.Shutdown()
}

// LazyFreeDel implements command.Hooks, surfacing lazyfree.server_del
// for handlers (e.g. `del`) that choose sync vs async deletion.
func (s *Server) LazyFreeDel() bool {
	return s.cfg.Lazyfree.ServerDel
}

// Worker implements command.Hooks, exposing the lazy-free worker that
// `del` hands large values to when lazy freeing is enabled.
func (s *Server) Worker() *bgtask.Worker { return s.worker }

// Close releases resources Run doesn't already defer-close, for tests
// that build a Server without calling Run.
func (s *Server) Close() error {
	s.worker.Stop()
	return s.reactor.Close()
}

// SetObserver installs obs on the command table so every dispatched
// command reports its name, flags, timing and outcome to it. Intended
// for the rhinorox package's Metrics wiring; nil restores the no-op
// observer.
func (s *Server) SetObserver(obs command.Observer) {
	s.table.SetObserver(obs)
}

// ConnectionStats returns the client manager's live connection count
// plus its lifetime served/rejected totals, for rhinorox.Metrics.
func (s *Server) ConnectionStats() (connected int, served, rejected uint64) {
	return s.clients.Count(), s.clients.Served(), s.clients.Rejected()
}
