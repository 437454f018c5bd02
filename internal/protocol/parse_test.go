package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rhino-rox/rhino-rox/internal/buf"
)

func parseStr(t *testing.T, s string) Result {
	t.Helper()
	b := buf.New()
	b.AppendString(s)
	return Parse(b)
}

func TestInlineSimple(t *testing.T) {
	r := parseStr(t, "ping\r\n")
	require.Equal(t, Complete, r.Status)
	require.Len(t, r.Argv, 1)
	require.Equal(t, "ping", string(r.Argv[0].Bytes()))
	require.Equal(t, len("ping\r\n"), r.Consumed)
}

func TestInlineMultipleTokens(t *testing.T) {
	r := parseStr(t, "set foo bar\n")
	require.Equal(t, Complete, r.Status)
	require.Len(t, r.Argv, 3)
	require.Equal(t, "set", string(r.Argv[0].Bytes()))
	require.Equal(t, "foo", string(r.Argv[1].Bytes()))
	require.Equal(t, "bar", string(r.Argv[2].Bytes()))
}

func TestInlineQuotedArgWithEscapes(t *testing.T) {
	r := parseStr(t, `set "a\nb" 'c\'d'`+"\r\n")
	require.Equal(t, Complete, r.Status)
	require.Len(t, r.Argv, 3)
	require.Equal(t, "a\nb", string(r.Argv[1].Bytes()))
	require.Equal(t, "c'd", string(r.Argv[2].Bytes()))
}

func TestInlineUnbalancedQuotesIsParseError(t *testing.T) {
	r := parseStr(t, `set "unterminated`+"\r\n")
	require.Equal(t, ParseError, r.Status)
	require.True(t, r.CloseAfterReply)
}

func TestInlineNeedsMoreWithoutNewline(t *testing.T) {
	r := parseStr(t, "pin")
	require.Equal(t, NeedMore, r.Status)
}

func TestInlineTooLongIsParseError(t *testing.T) {
	b := buf.New()
	b.AppendString(string(make([]byte, MaxInlineLen+10)))
	r := Parse(b)
	require.Equal(t, ParseError, r.Status)
	require.True(t, r.CloseAfterReply)
}

func TestMultiBulkComplete(t *testing.T) {
	r := parseStr(t, "*2\r\n$3\r\nSET\r\n$3\r\nfoo\r\n")
	require.Equal(t, Complete, r.Status)
	require.Len(t, r.Argv, 2)
	require.Equal(t, "SET", string(r.Argv[0].Bytes()))
	require.Equal(t, "foo", string(r.Argv[1].Bytes()))
}

func TestMultiBulkNeedMorePartialHeader(t *testing.T) {
	r := parseStr(t, "*2\r\n$3\r\n")
	require.Equal(t, NeedMore, r.Status)
}

func TestMultiBulkNeedMorePartialBody(t *testing.T) {
	r := parseStr(t, "*1\r\n$5\r\nhel")
	require.Equal(t, NeedMore, r.Status)
}

func TestMultiBulkInvalidLengthIsParseError(t *testing.T) {
	r := parseStr(t, "*abc\r\n")
	require.Equal(t, ParseError, r.Status)
	require.True(t, r.CloseAfterReply)
}

func TestMultiBulkExceedsMaxArgsIsParseError(t *testing.T) {
	r := parseStr(t, "*99999999999\r\n")
	require.Equal(t, ParseError, r.Status)
}

func TestMultiBulkPreservesTrailingPipelinedBytes(t *testing.T) {
	b := buf.New()
	b.AppendString("*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n")
	r := Parse(b)
	require.Equal(t, Complete, r.Status)
	b.Truncate(r.Consumed)
	require.Equal(t, "*1\r\n$4\r\nPING\r\n", string(b.Bytes()))
}

func TestAppendReplyHelpers(t *testing.T) {
	var dst []byte
	dst = AppendStatus(dst, "OK")
	dst = AppendError(dst, "boom")
	dst = AppendInteger(dst, 42)
	dst = AppendBulk(dst, []byte("hi"))
	dst = AppendNullBulk(dst)
	dst = AppendMultiBulkHeader(dst, 2)

	require.Equal(t, "+OK\r\n-ERR boom\r\n:42\r\n$2\r\nhi\r\n$-1\r\n*2\r\n", string(dst))
}
