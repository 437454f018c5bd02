package fts

// stopwords is the data-driven stopword list consulted by the
// tokenizer (§4.F, §9: "ship them as a data-driven module"). A
// standard short English stopword list; callers compare against it
// after lower-casing a token.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "that": {}, "the": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {}, "this": {}, "but": {},
	"they": {}, "have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "why": {}, "how": {}, "all": {}, "each": {},
	"or": {}, "not": {}, "no": {}, "so": {}, "if": {}, "can": {}, "do": {},
	"does": {}, "did": {}, "i": {}, "you": {}, "we": {}, "she": {}, "them": {},
	"their": {}, "than": {}, "too": {}, "very": {}, "just": {}, "about": {},
}

// isStopword reports whether term (already lower-cased) is a stopword.
func isStopword(term string) bool {
	_, ok := stopwords[term]
	return ok
}
