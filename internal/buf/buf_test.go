package buf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendGrowsAndKeepsContent(t *testing.T) {
	b := New()
	b.AppendString("hello")
	b.AppendString(" world")
	require.Equal(t, "hello world", string(b.Bytes()))
	require.Equal(t, 11, b.Len())
}

func TestReserveDoublesBelowCeiling(t *testing.T) {
	b := NewWithCapacity(4)
	require.Equal(t, 4, b.Cap())
	b.Append(make([]byte, 3))
	require.GreaterOrEqual(t, b.Cap(), 4)
	b.Append(make([]byte, 10))
	require.GreaterOrEqual(t, b.Cap(), 13)
}

func TestTruncateKeepsPipelinedTail(t *testing.T) {
	b := NewFromSlice([]byte("PING\r\nPING\r\n"))
	b.Truncate(6)
	require.Equal(t, "PING\r\n", string(b.Bytes()))
}

func TestTruncateAllClears(t *testing.T) {
	b := NewFromSlice([]byte("abc"))
	b.Truncate(100)
	require.Equal(t, 0, b.Len())
}

func TestRangeCopiesSlice(t *testing.T) {
	b := NewFromSlice([]byte("0123456789"))
	got := b.Range(2, 5)
	require.Equal(t, "234", string(got))
}

func TestClearKeepsCapacity(t *testing.T) {
	b := NewWithCapacity(64)
	b.AppendString("payload")
	cap0 := b.Cap()
	b.Clear()
	require.Equal(t, 0, b.Len())
	require.Equal(t, cap0, b.Cap())
}

func TestDuplicateIsIndependent(t *testing.T) {
	b := NewFromSlice([]byte("abc"))
	d := b.Duplicate()
	d.AppendString("d")
	require.Equal(t, "abc", string(b.Bytes()))
	require.Equal(t, "abcd", string(d.Bytes()))
}
