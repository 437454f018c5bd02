package object

import "fmt"

// sharedObjects is the process-global table of process-lifetime
// String objects built once at startup (§4.D). None of these are ever
// freed; DecrRef/IncrRef treat every field as a no-op via the
// sharedRefcount sentinel.
type sharedObjects struct {
	OK            *Object
	Err           *Object
	Czero         *Object
	Cone          *Object
	Pong          *Object
	NullBulk      *Object
	WrongTypeErr  *Object
	NoKeyErr      *Object
	CRLF          *Object
	Integers      [10000]*Object
	BulkHeaders   [32]*Object // "$N\r\n" for N in [0, 31]
	MultiHeaders  [32]*Object // "*N\r\n" for N in [0, 31]
}

// Shared is the process-wide shared object table, built by init so it
// is ready before any command dispatch.
var Shared = buildShared()

func sharedString(s string) *Object {
	o := CreateRaw([]byte(s))
	return o.markShared()
}

// sharedInt builds an integer-encoded shared String object, the same
// encoding TryEncodeInt's own non-shared branch uses, so Int64() and
// TryEncodeInt's shared-singleton lookup agree for every value in
// Shared.Integers.
func sharedInt(n int64) *Object {
	o := newObject(TypeString, EncodingInt)
	o.intval = n
	return o.markShared()
}

func buildShared() *sharedObjects {
	s := &sharedObjects{
		OK:           sharedString("+OK\r\n"),
		Err:          sharedString("-ERR\r\n"),
		Czero:        sharedString(":0\r\n"),
		Cone:         sharedString(":1\r\n"),
		Pong:         sharedString("+PONG\r\n"),
		NullBulk:     sharedString("$-1\r\n"),
		WrongTypeErr: sharedString("-ERR wrong kind of value\r\n"),
		NoKeyErr:     sharedString("-ERR no such key\r\n"),
		CRLF:         sharedString("\r\n"),
	}
	for i := range s.Integers {
		s.Integers[i] = sharedInt(int64(i))
	}
	for i := range s.BulkHeaders {
		s.BulkHeaders[i] = sharedString(fmt.Sprintf("$%d\r\n", i))
	}
	for i := range s.MultiHeaders {
		s.MultiHeaders[i] = sharedString(fmt.Sprintf("*%d\r\n", i))
	}
	return s
}
