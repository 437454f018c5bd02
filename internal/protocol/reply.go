package protocol

import (
	"strconv"

	"github.com/rhino-rox/rhino-rox/internal/object"
)

// AppendStatus appends a `+<s>\r\n` status reply (rr_replying.c's
// reply_add_status).
func AppendStatus(dst []byte, s string) []byte {
	dst = append(dst, '+')
	dst = append(dst, s...)
	return append(dst, '\r', '\n')
}

// AppendError appends a `-ERR <msg>\r\n` error reply
// (reply_add_err_len). Embedded CR/LF bytes are replaced with spaces
// so the reply can never smuggle a second protocol line.
func AppendError(dst []byte, msg string) []byte {
	dst = append(dst, '-', 'E', 'R', 'R', ' ')
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		if c == '\r' || c == '\n' {
			c = ' '
		}
		dst = append(dst, c)
	}
	return append(dst, '\r', '\n')
}

// AppendInteger appends a `:<n>\r\n` integer reply
// (reply_add_longlong).
func AppendInteger(dst []byte, n int64) []byte {
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, '\r', '\n')
}

// AppendBulkHeader appends a `$<n>\r\n` bulk length header
// (reply_add_bulk_len), using the shared header table for n in [0,31].
func AppendBulkHeader(dst []byte, n int) []byte {
	if n >= 0 && n < len(object.Shared.BulkHeaders) {
		return append(dst, object.Shared.BulkHeaders[n].Bytes()...)
	}
	dst = append(dst, '$')
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, '\r', '\n')
}

// AppendBulk appends a full `$<n>\r\n<bytes>\r\n` bulk reply
// (reply_add_bulk_cbuf).
func AppendBulk(dst []byte, b []byte) []byte {
	dst = AppendBulkHeader(dst, len(b))
	dst = append(dst, b...)
	return append(dst, '\r', '\n')
}

// AppendBulkObject appends obj's String payload as a bulk reply
// (reply_add_bulk_obj).
func AppendBulkObject(dst []byte, obj *object.Object) []byte {
	return AppendBulk(dst, obj.Bytes())
}

// AppendNullBulk appends the `$-1\r\n` null bulk reply.
func AppendNullBulk(dst []byte) []byte {
	return append(dst, object.Shared.NullBulk.Bytes()...)
}

// AppendMultiBulkHeader appends a `*<n>\r\n` header
// (reply_add_multi_bulk_len), using the shared header table for n in
// [0,31].
func AppendMultiBulkHeader(dst []byte, n int) []byte {
	if n >= 0 && n < len(object.Shared.MultiHeaders) {
		return append(dst, object.Shared.MultiHeaders[n].Bytes()...)
	}
	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, '\r', '\n')
}
