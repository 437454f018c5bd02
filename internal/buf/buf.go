// Package buf implements the dynamic, capacity-tracked byte buffer used
// throughout rhino-rox (component A of SPEC_FULL.md): client query and
// reply buffers, bulk argument payloads, and reply-pipeline chunks all
// share this type instead of raw []byte so growth policy stays uniform.
package buf

const (
	// growthCeiling is the point at which the growth policy switches
	// from doubling to fixed 1 MiB increments (§4.A).
	growthCeiling = 1 << 20
)

// Buffer is a growable byte container that keeps an explicit length
// separate from capacity, mirroring an sds-like string.
type Buffer struct {
	data []byte
}

// New creates an empty buffer with no pre-allocated capacity.
func New() *Buffer {
	return &Buffer{}
}

// NewFromSlice creates a buffer whose initial contents are a copy of b.
func NewFromSlice(b []byte) *Buffer {
	buf := &Buffer{data: make([]byte, len(b))}
	copy(buf.data, b)
	return buf
}

// NewWithCapacity pre-hints the buffer's capacity, avoiding the first
// few growth steps when the caller knows roughly how much it will need.
func NewWithCapacity(hint int) *Buffer {
	if hint < 0 {
		hint = 0
	}
	return &Buffer{data: make([]byte, 0, hint)}
}

// Len returns the number of valid bytes currently held.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the current backing capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Bytes returns the valid portion of the buffer. The caller must not
// retain it past the next mutating call.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Range returns a copy of the bytes in [from, to).
func (b *Buffer) Range(from, to int) []byte {
	if from < 0 {
		from = 0
	}
	if to > len(b.data) {
		to = len(b.data)
	}
	if from >= to {
		return nil
	}
	out := make([]byte, to-from)
	copy(out, b.data[from:to])
	return out
}

// Reserve grows the backing array so that at least n additional bytes
// can be appended without another allocation. Growth doubles the
// current capacity until growthCeiling, then grows in fixed 1 MiB
// increments (§4.A growth policy).
func (b *Buffer) Reserve(n int) {
	need := len(b.data) + n
	if need <= cap(b.data) {
		return
	}
	newCap := cap(b.data)
	if newCap == 0 {
		newCap = n
	}
	for newCap < need {
		if newCap < growthCeiling {
			newCap *= 2
			if newCap == 0 {
				newCap = n
			}
		} else {
			newCap += growthCeiling
		}
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}

// Append appends p to the buffer, growing as needed.
func (b *Buffer) Append(p []byte) {
	b.Reserve(len(p))
	b.data = append(b.data, p...)
}

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(c byte) {
	b.Reserve(1)
	b.data = append(b.data, c)
}

// AppendString appends the bytes of s.
func (b *Buffer) AppendString(s string) {
	b.Reserve(len(s))
	b.data = append(b.data, s...)
}

// Clear resets the length to zero without releasing capacity.
func (b *Buffer) Clear() {
	b.data = b.data[:0]
}

// Truncate drops the first n bytes, shifting the remainder to the
// front. Used after parsing a complete request out of a query buffer
// so the unconsumed pipelined tail is preserved (§4.H).
func (b *Buffer) Truncate(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	copy(b.data, b.data[n:])
	b.data = b.data[:len(b.data)-n]
}

// Duplicate returns an independent copy of this buffer.
func (b *Buffer) Duplicate() *Buffer {
	return NewFromSlice(b.data)
}

// Free drops the backing array. Present for parity with the teacher's
// explicit free() calls; the garbage collector does the real work.
func (b *Buffer) Free() {
	b.data = nil
}
