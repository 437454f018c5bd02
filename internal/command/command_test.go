package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rhino-rox/rhino-rox/internal/bgtask"
	"github.com/rhino-rox/rhino-rox/internal/db"
	"github.com/rhino-rox/rhino-rox/internal/object"
)

type fakeHooks struct {
	dbs              *db.Keyspace
	configs          map[string]string
	clientList       string
	shutdownReceived bool
	lazyFreeDel      bool
}

func newFakeHooks() *fakeHooks {
	return &fakeHooks{
		dbs:     db.NewKeyspace(4),
		configs: map[string]string{"max_clients": "128"},
	}
}

func (h *fakeHooks) SelectDB(n int) (*db.DB, error) { return h.dbs.DB(n) }
func (h *fakeHooks) FlushDB(d *db.DB)               { d.Flush(false, nil) }
func (h *fakeHooks) ConfigGet(param string) (string, bool) {
	v, ok := h.configs[param]
	return v, ok
}
func (h *fakeHooks) ClientListText() string { return h.clientList }
func (h *fakeHooks) InfoSnapshot() string   { return "rhino_rox_version:test" }
func (h *fakeHooks) RequestShutdown()       { h.shutdownReceived = true }
func (h *fakeHooks) LazyFreeDel() bool      { return h.lazyFreeDel }
func (h *fakeHooks) Worker() *bgtask.Worker { return nil }

func argv(parts ...string) []*object.Object {
	out := make([]*object.Object, len(parts))
	for i, p := range parts {
		out[i] = object.CreateString([]byte(p))
	}
	return out
}

func newCtx(hooks *fakeHooks, parts ...string) *Context {
	d, _ := hooks.dbs.DB(0)
	return &Context{Argv: argv(parts...), DB: d, Hooks: hooks}
}

func TestDispatchUnknownCommand(t *testing.T) {
	table := NewTable()
	hooks := newFakeHooks()
	ctx := newCtx(hooks, "bogus")
	table.Dispatch(ctx, nil)
	require.Contains(t, string(ctx.Out), "unknown command")
}

func TestDispatchArityMismatch(t *testing.T) {
	table := NewTable()
	table.Register(&Command{Name: "echo", Arity: 2, Handler: cmdEcho})
	hooks := newFakeHooks()
	ctx := newCtx(hooks, "echo")
	table.Dispatch(ctx, nil)
	require.Contains(t, string(ctx.Out), "wrong number of arguments")
}

func TestDispatchQuitShortCircuits(t *testing.T) {
	table := NewTable()
	hooks := newFakeHooks()
	ctx := newCtx(hooks, "quit")
	table.Dispatch(ctx, nil)
	require.True(t, ctx.CloseAfterReply)
	require.Equal(t, "+OK\r\n", string(ctx.Out))
}

func TestDispatchUpdatesCallStats(t *testing.T) {
	table := NewTable()
	cmd := &Command{Name: "ping", Arity: -1, Handler: cmdPing}
	table.Register(cmd)
	hooks := newFakeHooks()

	table.Dispatch(newCtx(hooks, "ping"), nil)
	table.Dispatch(newCtx(hooks, "ping"), nil)
	require.Equal(t, uint64(2), cmd.Calls())
}

func TestDispatchCaseInsensitiveLookup(t *testing.T) {
	table := NewTable()
	table.Register(&Command{Name: "ping", Arity: -1, Handler: cmdPing})
	hooks := newFakeHooks()
	ctx := newCtx(hooks, "PING")
	table.Dispatch(ctx, nil)
	require.Equal(t, "+PONG\r\n", string(ctx.Out))
}

func TestBuildDefaultTableRegistersCoreCommands(t *testing.T) {
	table := BuildDefaultTable()
	for _, name := range []string{"get", "set", "del", "rget", "rset", "qpush", "qpop", "dset", "dsearch", "select", "flushdb"} {
		_, ok := table.Lookup(name)
		require.True(t, ok, "expected %q to be registered", name)
	}
}
