package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateStringPicksEmbeddedOrRaw(t *testing.T) {
	short := CreateString([]byte("hello"))
	require.Equal(t, EncodingEmbedded, short.Encoding())

	long := CreateString(make([]byte, embeddedMaxLen+1))
	require.Equal(t, EncodingRaw, long.Encoding())
}

func TestTryEncodeIntSharesSmallIntegers(t *testing.T) {
	a := TryEncodeInt([]byte("42"))
	b := TryEncodeInt([]byte("42"))
	require.NotNil(t, a)
	require.Same(t, a, b, "property 9: shared integer reuse")
	require.True(t, a.IsShared())

	notInt := TryEncodeInt([]byte("abc"))
	require.Nil(t, notInt)

	big := TryEncodeInt([]byte("123456"))
	require.NotNil(t, big)
	require.False(t, big.IsShared())
	v, ok := big.Int64()
	require.True(t, ok)
	require.Equal(t, int64(123456), v)
}

func TestTryObjectEncodingConvertsDigitStrings(t *testing.T) {
	raw := CreateString([]byte("777"))
	enc := TryObjectEncoding(raw)
	v, ok := enc.Int64()
	require.True(t, ok)
	require.Equal(t, int64(777), v)

	notDigits := CreateString([]byte("hello"))
	require.Same(t, notDigits, TryObjectEncoding(notDigits))
}

func TestIncrDecrRefReleasesAtZero(t *testing.T) {
	o := CreateString([]byte("payload"))
	require.Equal(t, int32(1), o.Refcount())

	IncrRef(o)
	require.Equal(t, int32(2), o.Refcount())

	DecrRef(o)
	require.Equal(t, int32(1), o.Refcount())
	require.Equal(t, []byte("payload"), o.Bytes())

	DecrRef(o)
	require.Nil(t, o.raw)
}

func TestDecrIncrOnSharedIsNoop(t *testing.T) {
	before := Shared.OK.Refcount()
	IncrRef(Shared.OK)
	DecrRef(Shared.OK)
	DecrRef(Shared.OK)
	require.Equal(t, before, Shared.OK.Refcount())
	require.True(t, Shared.OK.IsShared())
}

func TestHashPayloadDecrefsValuesOnRelease(t *testing.T) {
	h := CreateHash()
	v1 := CreateString([]byte("v1"))
	v2 := CreateString([]byte("v2"))
	h.Hash().Set([]byte("k1"), v1)
	h.Hash().Set([]byte("k2"), v2)
	IncrRef(v1)
	IncrRef(v2)

	DecrRef(h)
	require.Equal(t, int32(1), v1.Refcount())
	require.Equal(t, int32(1), v2.Refcount())
}

func TestHeapQOrdersByScore(t *testing.T) {
	h := CreateHeapQ()
	h.HeapQ().Push(HeapQItem{Score: 3, Obj: CreateString([]byte("c"))})
	h.HeapQ().Push(HeapQItem{Score: 1, Obj: CreateString([]byte("a"))})
	h.HeapQ().Push(HeapQItem{Score: 2, Obj: CreateString([]byte("b"))})

	min, ok := h.HeapQ().Min()
	require.True(t, ok)
	require.Equal(t, float64(1), min.Score)
	require.Equal(t, 3, h.Len())
}

func TestFtsAddGetSearchDel(t *testing.T) {
	o := CreateFts()
	o.FtsAdd(CreateString([]byte("t1")), CreateString([]byte("the quick brown fox")))
	o.FtsAdd(CreateString([]byte("t2")), CreateString([]byte("quick brown dogs")))
	require.Equal(t, 2, o.Len())

	body, ok := o.FtsGet("t2")
	require.True(t, ok)
	require.Equal(t, "quick brown dogs", string(body.Bytes()))

	results := o.FtsSearch("brown", 10)
	require.Len(t, results, 2)
	require.Equal(t, "t2", results[0].Title)

	require.True(t, o.FtsDel("t1"))
	require.Equal(t, 1, o.Len())
	require.False(t, o.FtsDel("missing"))
}

func TestLazyFreeEffort(t *testing.T) {
	str := CreateString([]byte("x"))
	require.Equal(t, 1, LazyFreeEffort(str))

	h := CreateHash()
	for i := 0; i < 5; i++ {
		h.Hash().Set([]byte{byte('a' + i)}, CreateString([]byte("v")))
	}
	require.Equal(t, 5, LazyFreeEffort(h))
}

func TestTypeWrongAccessPanics(t *testing.T) {
	str := CreateString([]byte("x"))
	require.Panics(t, func() { str.Hash() })
}
