// Package object implements the tagged value type shared by the
// keyspace, the hash/trie command set, the heap-queue command set, and
// the full-text search command set (component D of SPEC_FULL.md).
//
// Every stored value is an *Object carrying a type tag, an encoding
// tag, a refcount, and a type-specific payload. Refcount reaching zero
// releases the payload; a SHARED sentinel marks process-lifetime
// objects — small integers, canned replies, and protocol headers built
// once at startup and never freed (§4.D of SPEC_FULL.md, grounded on
// rr_db.c's incrRefCount/decrRefCount usage and the "robj" type
// referenced throughout the original source, since robj.c/h itself was
// not part of the retrieved pack).
package object

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"

	"github.com/rhino-rox/rhino-rox/internal/critbit"
	"github.com/rhino-rox/rhino-rox/internal/fts"
	"github.com/rhino-rox/rhino-rox/internal/heap"
)

// Type is the object's domain type.
type Type int

const (
	TypeString Type = iota
	TypeHash
	TypeHeapQ
	TypeFts
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeHash:
		return "trie"
	case TypeHeapQ:
		return "heapq"
	case TypeFts:
		return "fts"
	default:
		return "unknown"
	}
}

// Encoding is the object's internal representation.
type Encoding int

const (
	EncodingRaw Encoding = iota
	EncodingInt
	EncodingEmbedded
	EncodingHashTable
)

// embeddedMaxLen is the largest string payload stored inline rather
// than as a separate allocation (§4.D: "create_embedded(bytes<=44)").
const embeddedMaxLen = 44

// sharedRefcount marks an object with process lifetime: Incr/Decr are
// both no-ops against it. math.MaxInt32 can never be reached by normal
// increment traffic, so it doubles as a recognizable sentinel.
const sharedRefcount = math.MaxInt32

// HeapQItem is one {score, object} entry of a HeapQ-encoded object's
// min-heap payload.
type HeapQItem struct {
	Score float64
	Obj   *Object
}

// ftsDoc is the (title, body) pair stored by an Fts-encoded object's
// index; both fields are themselves String objects so refcounting
// stays uniform across the keyspace.
type ftsDoc struct {
	title *Object
	body  *Object
}

// Object is a reference-counted, tagged value.
type Object struct {
	typ      Type
	encoding Encoding
	refcount atomic.Int32

	raw    []byte // EncodingRaw / EncodingEmbedded string payload
	intval int64  // EncodingInt string payload

	hash  *critbit.Dict[*Object]       // TypeHash payload
	heapq *heap.Heap[HeapQItem]        // TypeHeapQ payload
	ftsIx *fts.Index[*ftsDoc]          // TypeFts payload
}

func newObject(typ Type, encoding Encoding) *Object {
	o := &Object{typ: typ, encoding: encoding}
	o.refcount.Store(1)
	return o
}

// CreateRaw creates a String object whose payload is a dedicated copy
// of b, regardless of length.
func CreateRaw(b []byte) *Object {
	o := newObject(TypeString, EncodingRaw)
	o.raw = append([]byte(nil), b...)
	return o
}

// CreateEmbedded creates a String object with an inline payload. It
// panics if len(b) exceeds embeddedMaxLen; callers should use
// CreateRaw above that threshold (mirroring the original's dispatch in
// its string constructor).
func CreateEmbedded(b []byte) *Object {
	if len(b) > embeddedMaxLen {
		panic(fmt.Sprintf("object: embedded string exceeds %d bytes", embeddedMaxLen))
	}
	o := newObject(TypeString, EncodingEmbedded)
	o.raw = append([]byte(nil), b...)
	return o
}

// CreateString picks embedded vs raw encoding by length, the
// constructor ordinary SET commands go through.
func CreateString(b []byte) *Object {
	if len(b) <= embeddedMaxLen {
		return CreateEmbedded(b)
	}
	return CreateRaw(b)
}

// TryEncodeInt attempts to parse b as a base-10 int64. On success it
// returns an integer-encoded String object; small values in [0, 9999]
// return the shared singleton for that integer instead of allocating.
// On failure it returns nil.
func TryEncodeInt(b []byte) *Object {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return nil
	}
	if n >= 0 && n < int64(len(Shared.Integers)) {
		return Shared.Integers[n]
	}
	o := newObject(TypeString, EncodingInt)
	o.intval = n
	return o
}

// TryObjectEncoding re-encodes a Raw/Embedded string object as an
// integer encoding when its payload parses cleanly as one, mirroring
// the SET command path in rr_db.c ("c->argv[2] = tryObjectEncoding(...)").
// It returns its argument unchanged for any other type or encoding.
func TryObjectEncoding(o *Object) *Object {
	if o.typ != TypeString || o.encoding == EncodingInt {
		return o
	}
	if enc := TryEncodeInt(o.raw); enc != nil {
		return enc
	}
	return o
}

// CreateHash creates an empty Hash object (crit-bit dictionary mapping
// byte strings to Objects).
func CreateHash() *Object {
	o := newObject(TypeHash, EncodingHashTable)
	o.hash = critbit.New[*Object]()
	o.hash.SetFreeCallback(func(v *Object) { DecrRef(v) })
	return o
}

// Hash returns the object's crit-bit dictionary. It panics if the
// object is not TypeHash; callers are expected to check Type first
// (as rr_db.c's command handlers do via the wrong-type reply path).
func (o *Object) Hash() *critbit.Dict[*Object] {
	o.mustBeType(TypeHash)
	return o.hash
}

// CreateHeapQ creates an empty HeapQ object: a min-heap ordered by
// Score, used by the heap-queue command set.
func CreateHeapQ() *Object {
	o := newObject(TypeHeapQ, EncodingHashTable)
	o.heapq = heap.New(func(a, b HeapQItem) bool { return a.Score < b.Score })
	return o
}

// HeapQ returns the object's min-heap payload.
func (o *Object) HeapQ() *heap.Heap[HeapQItem] {
	o.mustBeType(TypeHeapQ)
	return o.heapq
}

// CreateFts creates an empty Fts object: a BM25 full-text index whose
// documents are themselves String objects.
func CreateFts() *Object {
	o := newObject(TypeFts, EncodingHashTable)
	o.ftsIx = fts.New(
		func(d *ftsDoc) string { return string(d.title.raw) },
		func(d *ftsDoc) string { return string(d.body.raw) },
	)
	return o
}

// FtsAdd indexes a (title, body) document under the object's
// full-text index, taking a reference on both.
func (o *Object) FtsAdd(title, body *Object) {
	o.mustBeType(TypeFts)
	IncrRef(title)
	IncrRef(body)
	o.ftsIx.Add(&ftsDoc{title: title, body: body})
}

// FtsGet returns the body Object stored under title, if present
// (rr_cmd_fts.c's "dget" semantics).
func (o *Object) FtsGet(title string) (*Object, bool) {
	o.mustBeType(TypeFts)
	d, ok := o.ftsIx.Get(title)
	if !ok {
		return nil, false
	}
	return d.body, true
}

// FtsDel removes the document stored under title, releasing its
// references.
func (o *Object) FtsDel(title string) bool {
	o.mustBeType(TypeFts)
	d, ok := o.ftsIx.Get(title)
	if !ok {
		return false
	}
	o.ftsIx.Del(title)
	DecrRef(d.title)
	DecrRef(d.body)
	return true
}

// FtsResult is one ranked match returned by FtsSearch.
type FtsResult struct {
	Title string
	Body  *Object
	Score float64
}

// FtsSearch ranks documents against query by BM25, returning up to
// limit results (limit <= 0 returns all matches).
func (o *Object) FtsSearch(query string, limit int) []FtsResult {
	o.mustBeType(TypeFts)
	hits := o.ftsIx.Search(query, limit)
	out := make([]FtsResult, len(hits))
	for i, h := range hits {
		out[i] = FtsResult{Title: string(h.Doc.title.raw), Body: h.Doc.body, Score: h.Score}
	}
	return out
}

func (o *Object) mustBeType(t Type) {
	if o.typ != t {
		panic(fmt.Sprintf("object: expected type %s, got %s", t, o.typ))
	}
}

// Type returns the object's domain type.
func (o *Object) Type() Type { return o.typ }

// Encoding returns the object's internal representation.
func (o *Object) Encoding() Encoding { return o.encoding }

// Bytes returns the String object's byte payload, materializing the
// decimal representation for integer-encoded strings.
func (o *Object) Bytes() []byte {
	o.mustBeType(TypeString)
	if o.encoding == EncodingInt {
		return strconv.AppendInt(nil, o.intval, 10)
	}
	return o.raw
}

// Int64 returns the String object's integer value and whether it is
// integer-encoded.
func (o *Object) Int64() (int64, bool) {
	o.mustBeType(TypeString)
	if o.encoding != EncodingInt {
		return 0, false
	}
	return o.intval, true
}

// Len returns the number of elements for aggregate types (Hash entry
// count, HeapQ size, Fts document count) and the byte length for
// String objects.
func (o *Object) Len() int {
	switch o.typ {
	case TypeString:
		return len(o.Bytes())
	case TypeHash:
		return o.hash.Len()
	case TypeHeapQ:
		return o.heapq.Len()
	case TypeFts:
		return o.ftsIx.Len()
	default:
		return 0
	}
}

// IsShared reports whether o has process lifetime.
func (o *Object) IsShared() bool {
	return o.refcount.Load() == sharedRefcount
}

// Refcount returns the current refcount, or sharedRefcount for shared
// objects.
func (o *Object) Refcount() int32 {
	return o.refcount.Load()
}

// markShared pins o at the shared sentinel. Only used by the shared
// object table's own construction.
func (o *Object) markShared() *Object {
	o.refcount.Store(sharedRefcount)
	return o
}

// IncrRef increments o's refcount. A no-op on shared objects.
func IncrRef(o *Object) {
	if o == nil || o.IsShared() {
		return
	}
	o.refcount.Add(1)
}

// DecrRef decrements o's refcount, releasing its type-specific payload
// when it reaches zero. A no-op on shared objects.
func DecrRef(o *Object) {
	if o == nil || o.IsShared() {
		return
	}
	if o.refcount.Add(-1) == 0 {
		release(o)
	}
}

func release(o *Object) {
	switch o.typ {
	case TypeHash:
		o.hash.Clear() // invokes the free callback on every stored Object
	case TypeFts:
		for _, d := range o.ftsIx.Docs() {
			DecrRef(d.title)
			DecrRef(d.body)
		}
		o.ftsIx = nil
	case TypeHeapQ:
		for o.heapq.Len() > 0 {
			item, _ := o.heapq.Pop()
			DecrRef(item.Obj)
		}
	}
	o.raw = nil
}

// LazyFreeEffort estimates the work needed to free o, proportional to
// the number of elements it owns rather than its allocation count
// (rr_db.c's get_lazyfree_effort): aggregates report their element
// count, everything else reports 1.
func LazyFreeEffort(o *Object) int {
	if o.encoding == EncodingHashTable {
		return o.Len()
	}
	return 1
}
