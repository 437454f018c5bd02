package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rhino-rox/rhino-rox/internal/bgtask"
	"github.com/rhino-rox/rhino-rox/internal/object"
)

func TestSetKeyIncrementsRefAddDoesNot(t *testing.T) {
	ks := NewKeyspace(1)
	d, err := ks.DB(0)
	require.NoError(t, err)

	v := object.CreateString([]byte("v1"))
	require.True(t, d.Add([]byte("k1"), v))
	require.Equal(t, int32(1), v.Refcount())

	v2 := object.CreateString([]byte("v2"))
	require.True(t, d.SetKey([]byte("k2"), v2))
	require.Equal(t, int32(2), v2.Refcount())
}

func TestLookupAndExists(t *testing.T) {
	ks := NewKeyspace(1)
	d, _ := ks.DB(0)
	require.Nil(t, d.Lookup([]byte("missing")))
	require.False(t, d.Exists([]byte("missing")))

	v := object.CreateString([]byte("val"))
	d.SetKey([]byte("k"), v)
	require.True(t, d.Exists([]byte("k")))
	require.Same(t, v, d.Lookup([]byte("k")))
}

func TestDelSyncDecrementsRef(t *testing.T) {
	ks := NewKeyspace(1)
	d, _ := ks.DB(0)
	v := object.CreateString([]byte("v"))
	d.SetKey([]byte("k"), v)
	require.Equal(t, int32(2), v.Refcount())

	require.True(t, d.DelSync([]byte("k")))
	require.Equal(t, int32(1), v.Refcount())
	require.False(t, d.DelSync([]byte("k")))
}

func TestDelAsyncOffloadsLargeEffort(t *testing.T) {
	ks := NewKeyspace(1)
	d, _ := ks.DB(0)

	h := object.CreateHash()
	for i := 0; i < lazyFreeThreshold+1; i++ {
		h.Hash().Set([]byte{byte(i), byte(i >> 8)}, object.CreateString([]byte("v")))
	}
	d.SetKey([]byte("big"), h)
	require.Equal(t, int32(2), h.Refcount())

	w := bgtask.NewWorker()
	defer w.Stop()
	require.True(t, d.DelAsync([]byte("big"), w))

	require.Eventually(t, func() bool {
		return h.Refcount() == 1
	}, time.Second, time.Millisecond)
}

func TestDelAsyncInlineWhenBelowThreshold(t *testing.T) {
	ks := NewKeyspace(1)
	d, _ := ks.DB(0)
	v := object.CreateString([]byte("small"))
	d.SetKey([]byte("k"), v)

	require.True(t, d.DelAsync([]byte("k"), nil))
	require.Equal(t, int32(1), v.Refcount())
}

func TestKeyspaceSelectOutOfRange(t *testing.T) {
	ks := NewKeyspace(4)
	_, err := ks.DB(3)
	require.NoError(t, err)
	_, err = ks.DB(4)
	require.Error(t, err)
	_, err = ks.DB(-1)
	require.Error(t, err)
}

func TestFlushClearsDatabase(t *testing.T) {
	ks := NewKeyspace(1)
	d, _ := ks.DB(0)
	d.SetKey([]byte("a"), object.CreateString([]byte("1")))
	d.SetKey([]byte("b"), object.CreateString([]byte("2")))
	require.Equal(t, 2, d.Len())

	d.Flush(false, nil)
	require.Equal(t, 0, d.Len())
}

func TestCheckTypeDetectsMismatch(t *testing.T) {
	ks := NewKeyspace(1)
	d, _ := ks.DB(0)
	d.SetKey([]byte("k"), object.CreateString([]byte("v")))

	_, err := CheckType(d, []byte("k"), object.TypeHash)
	require.Error(t, err)

	v, err := CheckType(d, []byte("k"), object.TypeString)
	require.NoError(t, err)
	require.NotNil(t, v)

	v, err = CheckType(d, []byte("missing"), object.TypeString)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestLookupOrCreateCreatesEmptyAggregateOnMiss(t *testing.T) {
	ks := NewKeyspace(1)
	d, _ := ks.DB(0)

	h, err := LookupOrCreate(d, []byte("h"), object.TypeHash)
	require.NoError(t, err)
	require.Equal(t, object.TypeHash, h.Type())
	require.Equal(t, int32(1), h.Refcount())
	require.Same(t, h, d.Lookup([]byte("h")))

	again, err := LookupOrCreate(d, []byte("h"), object.TypeHash)
	require.NoError(t, err)
	require.Same(t, h, again)

	_, err = LookupOrCreate(d, []byte("h"), object.TypeFts)
	require.Error(t, err)
}
