// Package command implements the command dispatcher (component I of
// SPEC_FULL.md): a name-keyed table of handlers with arity/flag
// checking and per-command call statistics, grounded on the dispatch
// contract spec.md §4.I describes and the handler signatures used
// throughout rr_db.c/rr_cmd_admin.c/rr_cmd_fts.c (rr_cmd_get,
// rr_cmd_set, ping/echo/shutdown, dset/dget/dsearch, ...).
package command

import (
	"bytes"
	"strings"
	"sync/atomic"

	"github.com/rhino-rox/rhino-rox/internal/bgtask"
	"github.com/rhino-rox/rhino-rox/internal/db"
	"github.com/rhino-rox/rhino-rox/internal/object"
	"github.com/rhino-rox/rhino-rox/internal/protocol"
)

// Flag is a bitset of command attributes.
type Flag uint32

const (
	FlagWrite Flag = 1 << iota
	FlagReadonly
	FlagDenyOOM
	FlagAdmin
	FlagFast
)

// HandlerFunc executes a command against ctx, appending its reply to
// ctx.Out.
type HandlerFunc func(ctx *Context)

// Command is one compiled command-table entry.
type Command struct {
	Name string
	Handler HandlerFunc
	// Arity: positive means exactly that many arguments (including the
	// command name itself); negative means at least |Arity|.
	Arity                      int
	Flags                      Flag
	FirstKey, LastKey, KeyStep int

	calls        atomic.Uint64
	microseconds atomic.Uint64
}

// Calls returns the number of times this command has been dispatched.
func (c *Command) Calls() uint64 { return c.calls.Load() }

// Microseconds returns cumulative handler execution time.
func (c *Command) Microseconds() uint64 { return c.microseconds.Load() }

func (c *Command) arityOK(argc int) bool {
	if c.Arity >= 0 {
		return argc == c.Arity
	}
	return argc >= -c.Arity
}

// Hooks gives command handlers access to server-wide state beyond the
// current database (multi-database selection, config introspection,
// client enumeration, shutdown) without importing the server package
// directly, avoiding a command<->server import cycle.
type Hooks interface {
	SelectDB(n int) (*db.DB, error)
	FlushDB(d *db.DB)
	ConfigGet(param string) (string, bool)
	ClientListText() string
	InfoSnapshot() string
	RequestShutdown()
	LazyFreeDel() bool
	Worker() *bgtask.Worker
}

// Context is the per-invocation state a handler operates on.
type Context struct {
	Argv  []*object.Object
	DB    *db.DB
	Hooks Hooks
	Out   []byte

	CloseAfterReply bool
}

// Arg returns the raw bytes of argv[i].
func (ctx *Context) Arg(i int) []byte { return ctx.Argv[i].Bytes() }

// ArgStr returns argv[i] as a string.
func (ctx *Context) ArgStr(i int) string { return string(ctx.Arg(i)) }

func (ctx *Context) ReplyStatus(s string) { ctx.Out = protocol.AppendStatus(ctx.Out, s) }
func (ctx *Context) ReplyError(msg string) { ctx.Out = protocol.AppendError(ctx.Out, msg) }
func (ctx *Context) ReplyInteger(n int64) { ctx.Out = protocol.AppendInteger(ctx.Out, n) }
func (ctx *Context) ReplyBulk(b []byte) { ctx.Out = protocol.AppendBulk(ctx.Out, b) }
func (ctx *Context) ReplyBulkObject(o *object.Object) { ctx.Out = protocol.AppendBulkObject(ctx.Out, o) }
func (ctx *Context) ReplyNullBulk() { ctx.Out = protocol.AppendNullBulk(ctx.Out) }
func (ctx *Context) ReplyMultiBulkHeader(n int) {
	ctx.Out = protocol.AppendMultiBulkHeader(ctx.Out, n)
}
func (ctx *Context) ReplyObj(o *object.Object) { ctx.Out = append(ctx.Out, o.Bytes()...) }

// Observer receives per-dispatch telemetry. It is optional: a Table
// with no observer set runs with a no-op one, so callers that don't
// care about metrics (most tests) pay nothing for it.
type Observer interface {
	// ObserveCommand is called once per Dispatch other than `quit`:
	// with ok == false and microseconds 0 for an unknown command or an
	// arity mismatch, and with ok == true after a registered handler
	// returns. microseconds is 0 when Dispatch was called with a nil
	// elapsed func.
	ObserveCommand(name string, flags Flag, microseconds uint64, ok bool)
}

type noopObserver struct{}

func (noopObserver) ObserveCommand(string, Flag, uint64, bool) {}

// Table is a command table compiled once at bootstrap and treated as
// immutable afterward (spec.md §4.I/§4.M: "the command table is
// immutable after bootstrap").
type Table struct {
	commands map[string]*Command
	observer Observer
}

// NewTable creates an empty command table.
func NewTable() *Table {
	return &Table{commands: make(map[string]*Command), observer: noopObserver{}}
}

// SetObserver installs obs as the table's telemetry sink. Passing nil
// restores the no-op observer.
func (t *Table) SetObserver(obs Observer) {
	if obs == nil {
		obs = noopObserver{}
	}
	t.observer = obs
}

// Register adds cmd to the table, keyed by its lower-cased name.
func (t *Table) Register(cmd *Command) {
	t.commands[strings.ToLower(cmd.Name)] = cmd
}

// Lookup finds a command by (already lower-cased) name.
func (t *Table) Lookup(name string) (*Command, bool) {
	c, ok := t.commands[name]
	return c, ok
}

// All returns every registered command, for introspection (e.g. a
// future "command count" admin command).
func (t *Table) All() []*Command {
	out := make([]*Command, 0, len(t.commands))
	for _, c := range t.commands {
		out = append(out, c)
	}
	return out
}

// Dispatch looks up argv[0] in t and runs it against ctx, writing
// arity/unknown-command errors directly to ctx.Out (spec.md §4.I).
// elapsed, if non-nil, is called before the handler runs and its
// result invoked after to accumulate microseconds; nil skips timing
// (used by tests that don't care about stats).
func (t *Table) Dispatch(ctx *Context, elapsed func() func() uint64) {
	if len(ctx.Argv) == 0 {
		return
	}
	name := strings.ToLower(ctx.ArgStr(0))

	if name == "quit" {
		ctx.ReplyStatus("OK")
		ctx.CloseAfterReply = true
		return
	}

	cmd, ok := t.Lookup(name)
	if !ok {
		ctx.ReplyError("unknown command '" + name + "'")
		t.observer.ObserveCommand(name, 0, 0, false)
		return
	}
	if !cmd.arityOK(len(ctx.Argv)) {
		ctx.ReplyError("wrong number of arguments for '" + name + "' command")
		t.observer.ObserveCommand(name, cmd.Flags, 0, false)
		return
	}

	var stop func() uint64
	if elapsed != nil {
		stop = elapsed()
	}
	cmd.Handler(ctx)
	var micros uint64
	if stop != nil {
		micros = stop()
		cmd.microseconds.Add(micros)
	}
	cmd.calls.Add(1)
	t.observer.ObserveCommand(name, cmd.Flags, micros, true)
}

// bytesEqualFold reports case-insensitive byte equality, used by a few
// handlers that compare argument bytes directly rather than through
// ArgStr (e.g. boolean-valued config flags).
func bytesEqualFold(a []byte, s string) bool {
	return bytes.EqualFold(a, []byte(s))
}
