// Package reply implements the per-client reply pipeline (component K
// of SPEC_FULL.md): a fixed-size static buffer plus an overflow list of
// coalesced byte chunks, and a bounded-per-episode flush to a raw file
// descriptor. Grounded on rr_replying.c's buf/buf_offset/reply-list
// design, adapted from sds-backed C lists to Go byte slices.
package reply

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// staticSize is the per-client static reply buffer capacity
// (spec.md §4.K: "a fixed 16 KiB static buffer").
const staticSize = 16 * 1024

// maxWritePerEpisode caps a single Flush call's total bytes written,
// so one client with a huge reply cannot starve the rest of the
// reactor's readiness loop (spec.md §4.K, rr_replying.c's
// NET_MAX_WRITES_PER_EVENT).
const maxWritePerEpisode = 64 * 1024

// Buffer is one client's outgoing reply queue.
type Buffer struct {
	static []byte // logically capped at staticSize; static[0:sent] already flushed
	sent   int

	overflow [][]byte // coalesced once static has no more room
}

// New creates an empty reply buffer.
func New() *Buffer {
	return &Buffer{static: make([]byte, 0, staticSize)}
}

// HasPending reports whether any bytes remain to be flushed.
func (b *Buffer) HasPending() bool {
	return b.sent < len(b.static) || len(b.overflow) > 0
}

// Append queues p for delivery, routing to the static buffer when
// there is room and the overflow list is still empty, coalescing into
// the overflow tail otherwise (spec.md §4.K).
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	if len(b.overflow) == 0 && staticSize-len(b.static) >= len(p) {
		b.static = append(b.static, p...)
		return
	}
	if n := len(b.overflow); n > 0 {
		tail := b.overflow[n-1]
		if len(tail)+len(p) <= staticSize {
			b.overflow[n-1] = append(tail, p...)
			return
		}
	}
	b.overflow = append(b.overflow, append([]byte(nil), p...))
}

// Reset clears all pending data, used when a client is freed.
func (b *Buffer) Reset() {
	b.static = b.static[:0]
	b.sent = 0
	b.overflow = nil
}

// Flush writes pending data to fd, capped at maxWritePerEpisode unless
// unbounded is set (spec.md §4.K: "unless used_memory >= max_memory >
// 0 in which case drain fully"). It returns done == true once
// HasPending would report false, and a non-nil err only for failures
// other than EAGAIN (EAGAIN yields done=false, err=nil: retry later).
func (b *Buffer) Flush(fd int, unbounded bool) (done bool, err error) {
	var written int
	for b.HasPending() {
		if !unbounded && written >= maxWritePerEpisode {
			return false, nil
		}

		chunk, fromStatic := b.headChunk()
		if len(chunk) == 0 {
			b.advance(fromStatic, len(chunk))
			continue
		}

		n, werr := unix.Write(fd, chunk)
		if n > 0 {
			written += n
			b.advance(fromStatic, n)
		}
		if werr != nil {
			if werr == syscall.EAGAIN || werr == syscall.EWOULDBLOCK {
				return false, nil
			}
			return false, werr
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

// headChunk returns the next unsent slice to write: the unsent tail of
// static if any remains, otherwise the head of the overflow list.
func (b *Buffer) headChunk() (chunk []byte, fromStatic bool) {
	if b.sent < len(b.static) {
		return b.static[b.sent:], true
	}
	if len(b.overflow) > 0 {
		return b.overflow[0], false
	}
	return nil, true
}

// advance records that n bytes of the current head chunk were
// written, rotating past it once fully consumed.
func (b *Buffer) advance(fromStatic bool, n int) {
	if fromStatic {
		b.sent += n
		if b.sent == len(b.static) {
			b.static = b.static[:0]
			b.sent = 0
		}
		return
	}
	head := b.overflow[0]
	if n >= len(head) {
		b.overflow = b.overflow[1:]
	} else {
		b.overflow[0] = head[n:]
	}
}
