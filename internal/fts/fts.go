// Package fts implements the BM25-ranked full-text index (component F
// of SPEC_FULL.md), grounded on rr_fts.c. A document is a (title, body)
// pair; Search tokenizes a query the same way documents are indexed and
// ranks matches by the Okapi BM25 score (k1=1.2, b=0.75).
//
// Index is parameterized over the payload type T instead of importing
// internal/object directly: the object package holds an *fts.Index as
// one of its encodings, and object documents are what callers store as
// T, so a direct import would cycle. The caller supplies accessor
// callbacks at construction time instead.
package fts

import (
	"math"
	"strings"

	"github.com/rhino-rox/rhino-rox/internal/heap"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// TitleFunc extracts the unique title key a document is stored under.
type TitleFunc[T any] func(doc T) string

// BodyFunc extracts the body text to tokenize and index.
type BodyFunc[T any] func(doc T) string

// posting is one (document, term frequency) pair in a term's postings
// list.
type posting[T any] struct {
	doc T
	tf  int
}

type docEntry[T any] struct {
	doc    T
	length int // token count, after stopword filtering and stemming
}

// Index is a BM25-ranked full-text index over documents of type T.
type Index[T any] struct {
	title TitleFunc[T]
	body  BodyFunc[T]

	docs     map[string]*docEntry[T]
	postings map[string][]posting[T]
	totalLen int
}

// New creates an empty index. title must return a stable, unique key
// per document (the dictionary key documents are looked up by); body
// returns the text tokenized into postings.
func New[T any](title TitleFunc[T], body BodyFunc[T]) *Index[T] {
	return &Index[T]{
		title:    title,
		body:     body,
		docs:     make(map[string]*docEntry[T]),
		postings: make(map[string][]posting[T]),
	}
}

// Len returns the number of indexed documents.
func (ix *Index[T]) Len() int {
	return len(ix.docs)
}

// tokenize splits text on whitespace, trims surrounding punctuation,
// lower-cases, drops stopwords, and stems what remains (§4.F).
func tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = trimPunctuation(strings.ToLower(f))
		if f == "" || isStopword(f) {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

// Add indexes doc, replacing any existing document under the same
// title (Del is implicitly applied first, matching dset's semantics in
// rr_cmd_fts.c).
func (ix *Index[T]) Add(doc T) {
	key := ix.title(doc)
	if _, exists := ix.docs[key]; exists {
		ix.Del(key)
	}

	terms := tokenize(ix.body(doc))
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}

	for term, count := range tf {
		ix.postings[term] = append(ix.postings[term], posting[T]{doc: doc, tf: count})
	}

	ix.docs[key] = &docEntry[T]{doc: doc, length: len(terms)}
	ix.totalLen += len(terms)
}

// Docs returns every indexed document, for callers that need to
// release resources each one holds when the index itself is torn down.
func (ix *Index[T]) Docs() []T {
	out := make([]T, 0, len(ix.docs))
	for _, e := range ix.docs {
		out = append(out, e.doc)
	}
	return out
}

// Get returns the document stored under key.
func (ix *Index[T]) Get(key string) (T, bool) {
	e, ok := ix.docs[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.doc, true
}

// Del removes the document stored under key, returning whether it was
// present.
func (ix *Index[T]) Del(key string) bool {
	e, ok := ix.docs[key]
	if !ok {
		return false
	}
	delete(ix.docs, key)
	ix.totalLen -= e.length

	for term, posts := range ix.postings {
		filtered := posts[:0]
		for _, p := range posts {
			if ix.title(p.doc) != key {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(ix.postings, term)
		} else {
			ix.postings[term] = filtered
		}
	}
	return true
}

// avgDocLen returns the mean document length in tokens, defaulting to
// 0 when the index is empty (the zero-division guard rr_fts.c applies
// by maxing the denominator with 1).
func (ix *Index[T]) avgDocLen() float64 {
	n := len(ix.docs)
	if n == 0 {
		return 0
	}
	return float64(ix.totalLen) / float64(n)
}

// idf computes the inverse document frequency term of BM25 for a term
// appearing in nq of N documents.
func idf(n, nq int) float64 {
	return math.Log((float64(n) - float64(nq) + 0.5) / (float64(nq) + 0.5))
}

// Result is one ranked match returned by Search.
type Result[T any] struct {
	Doc   T
	Score float64
}

// Search tokenizes query the same way documents are indexed, scores
// every matching document by BM25, and returns up to limit results in
// descending score order (ties broken arbitrarily, as in rr_fts.c). A
// limit <= 0 returns every match.
func (ix *Index[T]) Search(query string, limit int) []Result[T] {
	terms := tokenize(query)
	if len(terms) == 0 || len(ix.docs) == 0 {
		return nil
	}

	avgdl := ix.avgDocLen()
	n := len(ix.docs)

	scores := make(map[string]float64)
	docByKey := make(map[string]T)
	for _, term := range terms {
		posts, ok := ix.postings[term]
		if !ok {
			continue
		}
		weight := idf(n, len(posts))
		for _, p := range posts {
			key := ix.title(p.doc)
			e := ix.docs[key]
			tf := float64(p.tf)
			denom := tf + bm25K1*(1-bm25B+bm25B*float64(e.length)/avgdl)
			scores[key] += weight * tf * (bm25K1 + 1) / denom
			docByKey[key] = p.doc
		}
	}

	h := heap.New(func(a, b Result[T]) bool { return a.Score > b.Score })
	for key, score := range scores {
		h.Push(Result[T]{Doc: docByKey[key], Score: score})
	}

	var out []Result[T]
	for h.Len() > 0 {
		if limit > 0 && len(out) >= limit {
			break
		}
		r, _ := h.Pop()
		out = append(out, r)
	}
	return out
}
