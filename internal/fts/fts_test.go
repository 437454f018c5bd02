package fts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type doc struct {
	title string
	body  string
}

func newTestIndex() *Index[doc] {
	return New(
		func(d doc) string { return d.title },
		func(d doc) string { return d.body },
	)
}

func TestAddGetDel(t *testing.T) {
	ix := newTestIndex()
	ix.Add(doc{title: "t1", body: "the quick brown fox"})
	require.Equal(t, 1, ix.Len())

	got, ok := ix.Get("t1")
	require.True(t, ok)
	require.Equal(t, "the quick brown fox", got.body)

	require.True(t, ix.Del("t1"))
	require.Equal(t, 0, ix.Len())
	_, ok = ix.Get("t1")
	require.False(t, ok)
	require.False(t, ix.Del("t1"))
}

func TestAddOverwritesSameTitle(t *testing.T) {
	ix := newTestIndex()
	ix.Add(doc{title: "t1", body: "alpha beta"})
	ix.Add(doc{title: "t1", body: "gamma delta"})
	require.Equal(t, 1, ix.Len())

	got, _ := ix.Get("t1")
	require.Equal(t, "gamma delta", got.body)

	results := ix.Search("alpha", 10)
	require.Empty(t, results)
}

// TestSearchRanksShorterDocumentHigher reproduces the S5 scenario: two
// documents both contain "brown", but t2 is shorter, so BM25's length
// normalization ranks it first.
func TestSearchRanksShorterDocumentHigher(t *testing.T) {
	ix := newTestIndex()
	ix.Add(doc{title: "t1", body: "the quick brown fox"})
	ix.Add(doc{title: "t2", body: "quick brown dogs"})

	results := ix.Search("brown", 10)
	require.Len(t, results, 2)
	require.Equal(t, "t2", results[0].Doc.title)
	require.Equal(t, "t1", results[1].Doc.title)
	require.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchNoMatchIsEmpty(t *testing.T) {
	ix := newTestIndex()
	ix.Add(doc{title: "t1", body: "the quick brown fox"})
	require.Empty(t, ix.Search("elephant", 10))
	require.Empty(t, newTestIndex().Search("anything", 10))
}

func TestSearchRespectsLimit(t *testing.T) {
	ix := newTestIndex()
	ix.Add(doc{title: "t1", body: "apple banana"})
	ix.Add(doc{title: "t2", body: "apple cherry"})
	ix.Add(doc{title: "t3", body: "apple date"})

	results := ix.Search("apple", 2)
	require.Len(t, results, 2)
}

// TestBM25ScoreMonotonicInTermFrequency checks testable property 8: for
// fixed document length, a document repeating the query term scores
// strictly higher than one mentioning it once.
func TestBM25ScoreMonotonicInTermFrequency(t *testing.T) {
	ix := newTestIndex()
	ix.Add(doc{title: "low", body: "widget alpha beta gamma"})
	ix.Add(doc{title: "high", body: "widget widget widget gamma"})

	results := ix.Search("widget", 10)
	require.Len(t, results, 2)
	require.Equal(t, "high", results[0].Doc.title)
	require.Equal(t, "low", results[1].Doc.title)
}

func TestTokenizeDropsStopwordsAndPunctuation(t *testing.T) {
	got := tokenize("The quick, brown fox: jumps!")
	for _, tok := range got {
		require.NotEqual(t, "the", tok)
	}
	require.Contains(t, got, "quick")
	require.Contains(t, got, "brown")
}

func TestStemBasicSuffixes(t *testing.T) {
	cases := map[string]string{
		"caresses": "caress",
		"ponies":   "poni",
		"cats":     "cat",
		"feed":     "feed",
		"agreed":   "agre",
		"plastered": "plaster",
		"bled":     "bled",
		"motoring": "motor",
		"sing":     "sing",
	}
	for in, want := range cases {
		require.Equal(t, want, stem(in), "stem(%q)", in)
	}
}
