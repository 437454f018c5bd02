// Package client implements per-connection state and lifecycle
// (component J of SPEC_FULL.md): admission control on accept, the
// non-blocking read loop that feeds the protocol codec and command
// dispatcher, and sync/async connection teardown.
//
// Grounded on original_source/src/rr_network.c for the per-fd socket
// options (rr_net_nonblock, rr_net_keepalive, rr_net_nodelay,
// rr_net_accept) and on spec.md §4.J's literal accept-loop and
// read-callback contract; the reactor wiring follows the same
// raw-syscall-behind-a-struct idiom the teacher's internal/ctrl uses.
package client

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rhino-rox/rhino-rox/internal/buf"
	"github.com/rhino-rox/rhino-rox/internal/command"
	"github.com/rhino-rox/rhino-rox/internal/db"
	"github.com/rhino-rox/rhino-rox/internal/logging"
	"github.com/rhino-rox/rhino-rox/internal/protocol"
	"github.com/rhino-rox/rhino-rox/internal/reactor"
	"github.com/rhino-rox/rhino-rox/internal/reply"
)

const (
	// initialReadSize is the first read(2) length into the query
	// buffer (spec.md §4.J).
	initialReadSize = 16 * 1024
	// maxQueryBufferLen closes a client whose query buffer grows past
	// this without yielding a complete request (spec.md §4.J).
	maxQueryBufferLen = 512 * 1024 * 1024
	// maxAcceptsPerEvent bounds how many connections one readiness
	// event on the listening socket admits, so one accept storm can't
	// starve already-connected clients (spec.md §4.J).
	maxAcceptsPerEvent = 1000
)

// Client is one connection's state: its fd, currently selected
// database, query buffer, and outgoing reply pipeline.
type Client struct {
	Fd int
	DB *db.DB

	query *buf.Buffer
	Reply *reply.Buffer

	closeAfterReply bool
	closeASAP       bool

	CreatedAt       time.Time
	LastInteraction time.Time
}

// New creates a client for an already-accepted, already-configured fd.
func New(fd int, d *db.DB) *Client {
	now := time.Now()
	return &Client{
		Fd:              fd,
		DB:              d,
		query:           buf.New(),
		Reply:           reply.New(),
		CreatedAt:       now,
		LastInteraction: now,
	}
}

// CloseAfterReply reports whether the client should be freed once its
// reply buffer fully drains (set by `quit`/`shutdown` and by the
// protocol codec on a parse error).
func (c *Client) CloseAfterReply() bool { return c.closeAfterReply }

// CloseASAP reports whether the client is marked CLIENT_CLOSE_ASAP,
// queued for cron-time async release rather than a synchronous close.
func (c *Client) CloseASAP() bool { return c.closeASAP }

// MarkCloseASAP sets the async-close flag.
func (c *Client) MarkCloseASAP() { c.closeASAP = true }

// Close synchronously releases the client's fd. Query buffer, reply
// buffer and argv are reclaimed by the garbage collector once the
// Client itself is unreferenced - unlike the teacher's C original,
// there is no separate free() step for them.
func (c *Client) Close() error {
	return unix.Close(c.Fd)
}

// setSocketOptions applies the non-blocking/keepalive/nodelay trio
// every accepted connection gets, grounded directly on rr_net_nonblock,
// rr_net_keepalive and rr_net_nodelay.
func setSocketOptions(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return err
	}
	return nil
}

var errMaxClientsReached = errors.New("max number of clients reached")

// Manager tracks every live connection, admission stats, and the
// pieces a client needs to have its requests executed: the immutable
// command table and the hooks used to reach server-wide state.
type Manager struct {
	maxClients int
	table      *command.Table
	hooks      command.Hooks
	defaultDB  *db.DB
	logger     *logging.Logger

	clients map[int]*Client

	served   uint64
	rejected uint64
}

// NewManager creates a connection manager bounded at maxClients,
// dispatching through table with hooks, and placing newly accepted
// clients on defaultDB (database 0).
func NewManager(maxClients int, table *command.Table, hooks command.Hooks, defaultDB *db.DB) *Manager {
	return &Manager{
		maxClients: maxClients,
		table:      table,
		hooks:      hooks,
		defaultDB:  defaultDB,
		logger:     logging.Default(),
		clients:    make(map[int]*Client),
	}
}

// Count returns the number of currently registered clients.
func (m *Manager) Count() int { return len(m.clients) }

// Served returns the cumulative number of admitted connections.
func (m *Manager) Served() uint64 { return m.served }

// Rejected returns the cumulative number of connections turned away
// for exceeding max_clients.
func (m *Manager) Rejected() uint64 { return m.rejected }

// Clients returns every currently registered client, for `client list`.
func (m *Manager) Clients() []*Client {
	out := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out
}

// AcceptReady is a reactor.FileCallback for read-readiness on the
// listening socket: it accepts up to maxAcceptsPerEvent connections,
// admitting each against max_clients, applying socket options, and
// registering the new client for read events.
func (m *Manager) AcceptReady(r *reactor.Reactor, listenFd int, ud any, mask reactor.Mask) {
	for i := 0; i < maxAcceptsPerEvent; i++ {
		fd, _, err := unix.Accept(listenFd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EINTR {
				continue
			}
			m.logger.Warning("accept failed", "error", err)
			return
		}

		if err := setSocketOptions(fd); err != nil {
			m.logger.Warning("failed to configure accepted socket", "error", err)
			_ = unix.Close(fd)
			continue
		}

		if len(m.clients) >= m.maxClients {
			m.rejected++
			bestEffortSend(fd, "-ERR "+errMaxClientsReached.Error()+"\r\n")
			_ = unix.Close(fd)
			continue
		}

		c := New(fd, m.defaultDB)
		m.clients[fd] = c
		m.served++

		if err := r.AddFd(fd, reactor.Read, m.ReadReady, c); err != nil {
			m.logger.Warning("failed to register client fd", "error", err)
			delete(m.clients, fd)
			_ = unix.Close(fd)
		}
	}
}

// bestEffortSend writes s to fd without checking for partial writes or
// errors - the connection is being rejected regardless (spec.md §4.J:
// "best-effort send").
func bestEffortSend(fd int, s string) {
	_, _ = unix.Write(fd, []byte(s))
}

// ReadReady is a reactor.FileCallback for read-readiness on a client
// fd: it reads into the query buffer, parses and dispatches every
// complete pipelined request, and queues replies for the write path.
func (m *Manager) ReadReady(r *reactor.Reactor, fd int, ud any, mask reactor.Mask) {
	c := ud.(*Client)

	tmp := make([]byte, initialReadSize)
	n, err := unix.Read(fd, tmp)
	switch {
	case n == 0 && err == nil:
		m.closeClient(r, c)
		return
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		return
	case err != nil && err != unix.EINTR:
		m.logger.Warning("read failed, closing client", "fd", fd, "error", err)
		m.closeClient(r, c)
		return
	}
	if n > 0 {
		c.query.Append(tmp[:n])
		c.LastInteraction = time.Now()
	}
	if c.query.Len() > maxQueryBufferLen {
		m.logger.Warning("client query buffer exceeded limit, closing", "fd", fd)
		m.closeClient(r, c)
		return
	}

	m.drainRequests(r, c)

	if c.Reply.HasPending() {
		m.flush(r, c)
	} else if c.closeAfterReply {
		m.closeClient(r, c)
	}
}

// elapsedSince starts a wall-clock timer and returns a func reporting
// the elapsed microseconds when called, the concrete elapsed func
// command.Table.Dispatch uses to accumulate per-command timing and
// report it to the table's Observer.
func elapsedSince() func() uint64 {
	start := time.Now()
	return func() uint64 { return uint64(time.Since(start).Microseconds()) }
}

// drainRequests parses and dispatches every complete request currently
// sitting in c's query buffer, in arrival order (spec.md §4.H/§4.I).
func (m *Manager) drainRequests(r *reactor.Reactor, c *Client) {
	for {
		res := protocol.Parse(c.query)
		switch res.Status {
		case protocol.NeedMore:
			return
		case protocol.ParseError:
			c.query.Truncate(res.Consumed)
			ctx := &command.Context{Hooks: m.hooks, DB: c.DB}
			ctx.ReplyError(res.Err.Error())
			c.Reply.Append(ctx.Out)
			c.closeAfterReply = true
			return
		case protocol.Complete:
			c.query.Truncate(res.Consumed)
			if len(res.Argv) == 0 {
				continue
			}
			ctx := &command.Context{Argv: res.Argv, DB: c.DB, Hooks: m.hooks}
			m.table.Dispatch(ctx, elapsedSince)
			c.DB = ctx.DB
			c.Reply.Append(ctx.Out)
			if ctx.CloseAfterReply {
				c.closeAfterReply = true
				return
			}
		}
	}
}

// flush attempts to drain c's reply buffer, installing a Write
// callback if output remains and uninstalling it once drained.
func (m *Manager) flush(r *reactor.Reactor, c *Client) {
	done, err := c.Reply.Flush(c.Fd, false)
	if err != nil {
		m.logger.Warning("flush failed, closing client", "fd", c.Fd, "error", err)
		m.closeClient(r, c)
		return
	}
	if !done {
		// If registering for write-readiness fails (e.g. fd out of the
		// reactor's range), fall back to an async close rather than
		// leaving the client stuck with undrained output forever
		// (spec.md §4.K: "schedule an async close").
		if err := r.AddFd(c.Fd, reactor.Write, m.WriteReady, c); err != nil {
			c.MarkCloseASAP()
		}
		return
	}
	if r.GetFd(c.Fd)&reactor.Write != 0 {
		r.DelFd(c.Fd, reactor.Write)
	}
	if c.closeAfterReply {
		m.closeClient(r, c)
	}
}

// WriteReady is a reactor.FileCallback for write-readiness on a client
// fd with a non-empty reply buffer.
func (m *Manager) WriteReady(r *reactor.Reactor, fd int, ud any, mask reactor.Mask) {
	c := ud.(*Client)
	m.flush(r, c)
}

// DrainAsyncCloses synchronously closes every client marked
// CLIENT_CLOSE_ASAP, for the cron loop to call each tick (spec.md
// §4.M: "drain async-close list").
func (m *Manager) DrainAsyncCloses(r *reactor.Reactor) int {
	closed := 0
	for _, c := range m.clients {
		if c.closeASAP {
			m.closeClient(r, c)
			closed++
		}
	}
	return closed
}

// closeClient unregisters c's fd from the reactor and closes the
// connection - the single teardown path both the read loop's
// synchronous close and the cron-driven async close funnel through.
// Deleting the current key mid-range (DrainAsyncCloses) is safe per
// the language spec.
func (m *Manager) closeClient(r *reactor.Reactor, c *Client) {
	r.DelFd(c.Fd, reactor.Read|reactor.Write)
	delete(m.clients, c.Fd)
	_ = c.Close()
}
