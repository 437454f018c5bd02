package critbit

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(d *Dict[int]) []string {
	var keys []string
	it := d.Iterator()
	for it.HasNext() {
		kv := it.Next()
		keys = append(keys, string(kv.Key))
	}
	return keys
}

func TestEmptyDictIsEmptyIteration(t *testing.T) {
	d := New[int]()
	require.Equal(t, 0, d.Len())
	require.False(t, d.Iterator().HasNext())
	require.False(t, d.PrefixIterator(nil).HasNext())
}

func TestCritBitRoundTripMatchesSort(t *testing.T) {
	keys := []string{"app", "apple", "apply", "box", "a", "", "zzzz", "ap"}
	d := New[int]()
	for i, k := range keys {
		require.True(t, d.Set([]byte(k), i))
	}
	require.Equal(t, len(keys), d.Len())

	want := append([]string(nil), keys...)
	sort.Strings(want)
	require.Equal(t, want, collect(d))
}

func TestOverwriteKeepsSizeAndReturnsLatestValue(t *testing.T) {
	d := New[string]()
	require.True(t, d.Set([]byte("k"), "v1"))
	require.True(t, d.Set([]byte("k"), "v2"))
	require.Equal(t, 1, d.Len())
	v, ok := d.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, "v2", v)
}

func TestDeleteMissingReturnsFalse(t *testing.T) {
	d := New[int]()
	d.Set([]byte("a"), 1)
	_, ok := d.Del([]byte("missing"))
	require.False(t, ok)
}

func TestPrefixQueryCorrectness(t *testing.T) {
	d := New[int]()
	keys := []string{"app", "apple", "apply", "box", "application"}
	for i, k := range keys {
		d.Set([]byte(k), i)
	}

	it := d.PrefixIterator([]byte("app"))
	var got []string
	for it.HasNext() {
		got = append(got, string(it.Next().Key))
	}
	sort.Strings(got)
	require.Equal(t, []string{"app", "apple", "application", "apply"}, got)

	require.True(t, d.HasPrefix([]byte("bo")))
	require.False(t, d.HasPrefix([]byte("nope")))
}

func TestRandomSubsetDeletion(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	d := New[int]()
	present := map[string]bool{}
	for i := 0; i < 300; i++ {
		k := randKey(r)
		d.Set([]byte(k), i)
		present[k] = true
	}

	for k := range present {
		if r.Intn(2) == 0 {
			_, ok := d.Del([]byte(k))
			require.True(t, ok)
			delete(present, k)
		}
	}

	require.Equal(t, len(present), d.Len())
	var want []string
	for k := range present {
		want = append(want, k)
	}
	sort.Strings(want)
	require.Equal(t, want, collect(d))
}

func randKey(r *rand.Rand) string {
	n := r.Intn(6) + 1
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + r.Intn(4))
	}
	return string(b)
}

func TestClearInvokesFreeCallback(t *testing.T) {
	d := New[int]()
	var freed []int
	d.SetFreeCallback(func(v int) { freed = append(freed, v) })
	d.Set([]byte("a"), 1)
	d.Set([]byte("b"), 2)
	d.Clear()
	require.Equal(t, 0, d.Len())
	require.ElementsMatch(t, []int{1, 2}, freed)
}

func TestForEachStopsEarly(t *testing.T) {
	d := New[int]()
	d.Set([]byte("a"), 1)
	d.Set([]byte("b"), 2)
	d.Set([]byte("c"), 3)

	var seen int
	d.ForEach(func(key []byte, value int) bool {
		seen++
		return false
	})
	require.Equal(t, 1, seen)
}
