package rhinorox

import (
	"github.com/rhino-rox/rhino-rox/internal/rrerr"
)

// Error is the structured error type NewServer/Run/Shutdown return,
// re-exported from internal/rrerr so callers outside this module can
// name and inspect it (internal/* isn't importable from outside the
// module). It carries the same Op/Fd/Code/Errno/Msg/Inner shape the
// teacher's own *Error carried for device/queue failures.
type Error = rrerr.Error

// ErrorCode is a high-level error category; see the Code* constants.
type ErrorCode = rrerr.Code

// Error code constants, re-exported from internal/rrerr.
const (
	CodeProtocol     = rrerr.CodeProtocol
	CodeUnknownCmd   = rrerr.CodeUnknownCmd
	CodeArity        = rrerr.CodeArity
	CodeWrongType    = rrerr.CodeWrongType
	CodeNoKey        = rrerr.CodeNoKey
	CodeOutOfMemory  = rrerr.CodeOutOfMemory
	CodeIO           = rrerr.CodeIO
	CodeFatalInit    = rrerr.CodeFatalInit
	CodeMaxClients   = rrerr.CodeMaxClients
	CodeInvalidParam = rrerr.CodeInvalidParam
)

// IsCode reports whether err (or anything it wraps) carries code.
func IsCode(err error, code ErrorCode) bool {
	return rrerr.Is(err, code)
}
