// Package db implements the keyspace (component E of SPEC_FULL.md): a
// fixed number of numbered databases, each a crit-bit dictionary
// mapping key bytes to *object.Object, with the lazy-free deletion
// policy described in rr_db.c.
package db

import (
	"github.com/rhino-rox/rhino-rox/internal/bgtask"
	"github.com/rhino-rox/rhino-rox/internal/critbit"
	"github.com/rhino-rox/rhino-rox/internal/object"
	"github.com/rhino-rox/rhino-rox/internal/rrerr"
)

// lazyFreeThreshold is the free-effort (see object.LazyFreeEffort)
// above which an asynchronous delete is offloaded to the background
// worker rather than decremented inline — at or below it,
// offloading costs more than it saves (rr_db.c's LAZYFREE_THRESHOLD).
const lazyFreeThreshold = 64

// DB is one numbered logical database.
type DB struct {
	id   int
	dict *critbit.Dict[*object.Object]
}

func newDB(id int) *DB {
	d := &DB{id: id, dict: critbit.New[*object.Object]()}
	d.dict.SetFreeCallback(func(v *object.Object) { object.DecrRef(v) })
	return d
}

// ID returns the database's index.
func (d *DB) ID() int { return d.id }

// Len returns the number of keys in the database.
func (d *DB) Len() int { return d.dict.Len() }

// Lookup returns the Object stored under key, or nil if absent. It
// does not affect refcounts.
func (d *DB) Lookup(key []byte) *object.Object {
	v, ok := d.dict.Get(key)
	if !ok {
		return nil
	}
	return v
}

// Exists reports whether key is present.
func (d *DB) Exists(key []byte) bool {
	return d.dict.Contains(key)
}

// Add inserts key/val without touching val's refcount (the caller is
// transferring ownership of the reference it already holds).
func (d *DB) Add(key []byte, val *object.Object) bool {
	return d.dict.Set(key, val)
}

// SetKey inserts key/val, incrementing val's refcount — the "ordinary"
// way command handlers install a value that the caller also keeps a
// reference to (rr_db.c's rr_db_set_key).
func (d *DB) SetKey(key []byte, val *object.Object) bool {
	ok := d.Add(key, val)
	if ok {
		object.IncrRef(val)
	}
	return ok
}

// DelSync removes key and immediately decrements the removed value's
// refcount.
func (d *DB) DelSync(key []byte) bool {
	v, ok := d.dict.Del(key)
	if !ok {
		return false
	}
	object.DecrRef(v)
	return true
}

// DelAsync removes key; if the removed value's lazy-free effort
// exceeds lazyFreeThreshold, its release is offloaded to worker. A nil
// worker (e.g. in tests) falls back to an inline decrement.
func (d *DB) DelAsync(key []byte, worker *bgtask.Worker) bool {
	v, ok := d.dict.Del(key)
	if !ok {
		return false
	}
	if worker != nil && object.LazyFreeEffort(v) > lazyFreeThreshold {
		worker.Submit(bgtask.Task{Kind: bgtask.LazyFreeObject, Payload: v})
	} else {
		object.DecrRef(v)
	}
	return true
}

// Del removes key, choosing DelSync or DelAsync according to lazyfree.
// worker may be nil when lazyfree is disabled.
func (d *DB) Del(key []byte, lazyfree bool, worker *bgtask.Worker) bool {
	if lazyfree {
		return d.DelAsync(key, worker)
	}
	return d.DelSync(key)
}

// Flush clears every key in the database, applying the same
// sync/async policy as Del to each value ("flushdb", SPEC_FULL.md
// §5.2).
func (d *DB) Flush(lazyfree bool, worker *bgtask.Worker) {
	if !lazyfree || worker == nil {
		d.dict.Clear()
		return
	}
	var keys [][]byte
	d.dict.ForEach(func(key []byte, _ *object.Object) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	})
	for _, k := range keys {
		d.DelAsync(k, worker)
	}
}

// Keyspace owns the fixed set of numbered databases created at
// bootstrap (spec.md §6's `database.max_dbs`).
type Keyspace struct {
	dbs []*DB
}

// NewKeyspace creates n numbered databases, 0-indexed.
func NewKeyspace(n int) *Keyspace {
	ks := &Keyspace{dbs: make([]*DB, n)}
	for i := range ks.dbs {
		ks.dbs[i] = newDB(i)
	}
	return ks
}

// NumDBs returns the number of databases.
func (ks *Keyspace) NumDBs() int { return len(ks.dbs) }

// DB returns the database at index id, or an error if id is out of
// range ("select", SPEC_FULL.md §5.2).
func (ks *Keyspace) DB(id int) (*DB, error) {
	if id < 0 || id >= len(ks.dbs) {
		return nil, rrerr.New("select", rrerr.CodeInvalidParam, "DB index is out of range")
	}
	return ks.dbs[id], nil
}

// LookupOrReply looks up key in db; callers use the ok return to
// decide whether to write a miss reply (rr_db.c's
// rr_db_lookup_or_reply split into an explicit two-value return since
// Go has no client-coupled reply side effect here).
func LookupOrReply(d *DB, key []byte) (*object.Object, bool) {
	v := d.Lookup(key)
	return v, v != nil
}

// CheckType looks up key in db, returning a rrerr wrong-type error if
// it exists with a different type than want. A missing key is not an
// error: it returns (nil, nil).
func CheckType(d *DB, key []byte, want object.Type) (*object.Object, error) {
	v := d.Lookup(key)
	if v == nil {
		return nil, nil
	}
	if v.Type() != want {
		return nil, rrerr.New("lookup", rrerr.CodeWrongType, "wrong kind of value")
	}
	return v, nil
}

// LookupOrCreate looks up key in db; if absent, it creates an empty
// aggregate object of the requested type, stores it, and returns it
// (rr_db.c's rr_db_lookup_or_create, used by the hash/heapq/fts
// command handlers' "create on first write" semantics). want must be
// TypeHash, TypeHeapQ, or TypeFts — CreateString has no empty-on-miss
// equivalent since every String write supplies its own value.
func LookupOrCreate(d *DB, key []byte, want object.Type) (*object.Object, error) {
	v, err := CheckType(d, key, want)
	if err != nil || v != nil {
		return v, err
	}

	var created *object.Object
	switch want {
	case object.TypeHash:
		created = object.CreateHash()
	case object.TypeHeapQ:
		created = object.CreateHeapQ()
	case object.TypeFts:
		created = object.CreateFts()
	default:
		return nil, rrerr.New("lookup", rrerr.CodeInvalidParam, "unsupported type for lookup-or-create")
	}
	// Add, not SetKey: created already carries the single reference its
	// constructor gave it, so ownership transfers straight to the dict
	// without an extra increment (mirrors rr_db_add's refcount-neutral
	// contract, unlike rr_db_set_key).
	d.Add(key, created)
	return created, nil
}
