// Package rrerr provides the structured error type used across the
// rhino-rox server so command handlers and the reactor can classify
// failures (§7 of SPEC_FULL.md) without string-matching reply text.
package rrerr

import (
	"errors"
	"fmt"
	"syscall"
)

// Code is a high-level error category (§7: protocol, arity, type
// mismatch, OOM, I/O, fatal-init).
type Code string

const (
	CodeProtocol     Code = "protocol error"
	CodeUnknownCmd   Code = "unknown command"
	CodeArity        Code = "wrong number of arguments"
	CodeWrongType    Code = "wrong type"
	CodeNoKey        Code = "no such key"
	CodeOutOfMemory  Code = "out of memory"
	CodeIO           Code = "I/O error"
	CodeFatalInit    Code = "fatal initialization error"
	CodeMaxClients   Code = "max number of clients reached"
	CodeInvalidParam Code = "invalid parameters"
)

// Error is a structured rhino-rox error with context for logging and
// errors.Is/As-based classification.
type Error struct {
	Op    string // operation that failed, e.g. "protocol.parse", "db.select"
	Fd    int    // client file descriptor, -1 if not applicable
	Code  Code   // high-level category
	Errno syscall.Errno
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Fd >= 0 {
		parts = append(parts, fmt.Sprintf("fd=%d", e.Fd))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("rhino-rox: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("rhino-rox: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// New creates a structured error with no client/errno context.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Fd: -1, Code: code, Msg: msg}
}

// NewClientError creates an error attributed to a specific client fd.
func NewClientError(op string, fd int, code Code, msg string) *Error {
	return &Error{Op: op, Fd: fd, Code: code, Msg: msg}
}

// WrapErrno wraps a syscall errno, classifying it by code.
func WrapErrno(op string, fd int, errno syscall.Errno) *Error {
	return &Error{Op: op, Fd: fd, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error()}
}

func mapErrnoToCode(errno syscall.Errno) Code {
	switch errno {
	case syscall.ENOENT:
		return CodeNoKey
	case syscall.EINVAL, syscall.E2BIG:
		return CodeInvalidParam
	case syscall.ENOMEM, syscall.ENOSPC:
		return CodeOutOfMemory
	default:
		return CodeIO
	}
}

// Is reports whether err carries the given high-level code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
