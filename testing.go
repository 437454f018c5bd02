package rhinorox

import (
	"sync"

	"github.com/rhino-rox/rhino-rox/internal/bgtask"
	"github.com/rhino-rox/rhino-rox/internal/command"
	"github.com/rhino-rox/rhino-rox/internal/db"
)

// MockHooks is a test double for command.Hooks, playing the role the
// teacher's MockBackend plays for Backend: it lets code that dispatches
// through a command.Table be unit tested without booting a real
// Server (no sockets, no reactor, no signal handlers), while tracking
// call counts for assertions the same way MockBackend tracks
// readCalls/writeCalls/flushCalls/syncCalls.
type MockHooks struct {
	mu sync.RWMutex

	dbs         *db.Keyspace
	configs     map[string]string
	clientList  string
	infoText    string
	lazyFreeDel bool
	worker      *bgtask.Worker

	shutdownCalls  int
	flushDBCalls   int
	selectCalls    int
	configGetCalls int
}

// NewMockHooks creates a MockHooks backed by an n-database keyspace,
// suitable for feeding straight into command.Context.Hooks.
func NewMockHooks(numDBs int) *MockHooks {
	return &MockHooks{
		dbs:     db.NewKeyspace(numDBs),
		configs: make(map[string]string),
	}
}

// DB returns database n. It panics on an out-of-range id, where
// SelectDB returns an error instead.
func (h *MockHooks) DB(n int) *db.DB {
	d, err := h.dbs.DB(n)
	if err != nil {
		panic(err)
	}
	return d
}

// SetConfig seeds a value ConfigGet will later return.
func (h *MockHooks) SetConfig(param, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.configs[param] = value
}

// SetClientListText fixes what ClientListText returns.
func (h *MockHooks) SetClientListText(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clientList = text
}

// SetInfoSnapshot fixes what InfoSnapshot returns.
func (h *MockHooks) SetInfoSnapshot(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.infoText = text
}

// SetLazyFreeDel fixes what LazyFreeDel returns.
func (h *MockHooks) SetLazyFreeDel(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lazyFreeDel = v
}

// SetWorker installs a background worker for cmdDel/FlushDB to lazily
// free through; nil (the default) makes those fall back to inline
// synchronous deletion.
func (h *MockHooks) SetWorker(w *bgtask.Worker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.worker = w
}

// ShutdownRequested reports whether RequestShutdown has been called.
func (h *MockHooks) ShutdownRequested() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.shutdownCalls > 0
}

// CallCounts returns how many times RequestShutdown, FlushDB, SelectDB
// and ConfigGet have been invoked, mirroring MockBackend.CallCounts;
// the other Hooks methods are not counted.
func (h *MockHooks) CallCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]int{
		"shutdown":   h.shutdownCalls,
		"flushdb":    h.flushDBCalls,
		"select":     h.selectCalls,
		"config_get": h.configGetCalls,
	}
}

// --- command.Hooks ---

func (h *MockHooks) SelectDB(n int) (*db.DB, error) {
	h.mu.Lock()
	h.selectCalls++
	h.mu.Unlock()
	return h.dbs.DB(n)
}

func (h *MockHooks) FlushDB(d *db.DB) {
	h.mu.Lock()
	h.flushDBCalls++
	lazyfree, worker := h.lazyFreeDel, h.worker
	h.mu.Unlock()
	d.Flush(lazyfree, worker)
}

func (h *MockHooks) ConfigGet(param string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.configGetCalls++
	v, ok := h.configs[param]
	return v, ok
}

func (h *MockHooks) ClientListText() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientList
}

func (h *MockHooks) InfoSnapshot() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.infoText
}

func (h *MockHooks) RequestShutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdownCalls++
}

func (h *MockHooks) LazyFreeDel() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lazyFreeDel
}

func (h *MockHooks) Worker() *bgtask.Worker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.worker
}

var _ command.Hooks = (*MockHooks)(nil)
