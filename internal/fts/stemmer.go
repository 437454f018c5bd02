package fts

import "strings"

// stem implements the Porter stemming algorithm (M. Porter, "An
// algorithm for suffix stripping", 1980), consulted by the tokenizer
// after stopword filtering (§4.F, §9: "ship as a data-driven module").
// It operates on already lower-cased ASCII words.
func stem(w string) string {
	if len(w) <= 2 {
		return w
	}
	b := []byte(w)

	b = step1a(b)
	b = step1b(b)
	b = step1c(b)
	b = step2(b)
	b = step3(b)
	b = step4(b)
	b = step5a(b)
	b = step5b(b)
	return string(b)
}

func isVowel(b []byte, i int) bool {
	switch b[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	case 'y':
		return i == 0 || !isVowel(b, i-1)
	}
	return false
}

// measure counts the number of consonant-vowel-consonant sequences
// (Porter's "m") in b.
func measure(b []byte) int {
	n := 0
	i := 0
	// skip leading consonants
	for i < len(b) && !isVowel(b, i) {
		i++
	}
	for i < len(b) {
		for i < len(b) && isVowel(b, i) {
			i++
		}
		if i >= len(b) {
			break
		}
		for i < len(b) && !isVowel(b, i) {
			i++
		}
		n++
	}
	return n
}

func containsVowel(b []byte) bool {
	for i := range b {
		if isVowel(b, i) {
			return true
		}
	}
	return false
}

func endsDoubleConsonant(b []byte) bool {
	n := len(b)
	if n < 2 {
		return false
	}
	if b[n-1] != b[n-2] {
		return false
	}
	return !isVowel(b, n-1)
}

// endsCVC reports the *o rule: consonant-vowel-consonant, where the
// final consonant is not w, x or y.
func endsCVC(b []byte) bool {
	n := len(b)
	if n < 3 {
		return false
	}
	if isVowel(b, n-3) || !isVowel(b, n-2) || isVowel(b, n-1) {
		return false
	}
	switch b[n-1] {
	case 'w', 'x', 'y':
		return false
	}
	return true
}

func hasSuffix(b []byte, suf string) bool {
	return len(b) >= len(suf) && string(b[len(b)-len(suf):]) == suf
}

func trimSuffix(b []byte, suf string) []byte {
	return b[:len(b)-len(suf)]
}

func replaceSuffix(b []byte, suf, repl string) []byte {
	return append(trimSuffix(b, suf), repl...)
}

func step1a(b []byte) []byte {
	switch {
	case hasSuffix(b, "sses"):
		return replaceSuffix(b, "sses", "ss")
	case hasSuffix(b, "ies"):
		return replaceSuffix(b, "ies", "i")
	case hasSuffix(b, "ss"):
		return b
	case hasSuffix(b, "s") && len(b) > 1:
		return trimSuffix(b, "s")
	}
	return b
}

func step1b(b []byte) []byte {
	switch {
	case hasSuffix(b, "eed"):
		stem := trimSuffix(b, "eed")
		if measure(stem) > 0 {
			return append(stem, "ee"...)
		}
		return b
	case hasSuffix(b, "ed") && containsVowel(trimSuffix(b, "ed")):
		b = trimSuffix(b, "ed")
		return step1bCleanup(b)
	case hasSuffix(b, "ing") && containsVowel(trimSuffix(b, "ing")):
		b = trimSuffix(b, "ing")
		return step1bCleanup(b)
	}
	return b
}

func step1bCleanup(b []byte) []byte {
	switch {
	case hasSuffix(b, "at"), hasSuffix(b, "bl"), hasSuffix(b, "iz"):
		return append(b, 'e')
	case endsDoubleConsonant(b) && !hasSuffix(b, "l") && !hasSuffix(b, "s") && !hasSuffix(b, "z"):
		return b[:len(b)-1]
	case measure(b) == 1 && endsCVC(b):
		return append(b, 'e')
	}
	return b
}

func step1c(b []byte) []byte {
	if hasSuffix(b, "y") && containsVowel(trimSuffix(b, "y")) {
		b[len(b)-1] = 'i'
	}
	return b
}

var step2Suffixes = []struct{ from, to string }{
	{"ational", "ate"}, {"tional", "tion"}, {"enci", "ence"}, {"anci", "ance"},
	{"izer", "ize"}, {"abli", "able"}, {"alli", "al"}, {"entli", "ent"},
	{"eli", "e"}, {"ousli", "ous"}, {"ization", "ize"}, {"ation", "ate"},
	{"ator", "ate"}, {"alism", "al"}, {"iveness", "ive"}, {"fulness", "ful"},
	{"ousness", "ous"}, {"aliti", "al"}, {"iviti", "ive"}, {"biliti", "ble"},
}

func step2(b []byte) []byte {
	for _, suf := range step2Suffixes {
		if hasSuffix(b, suf.from) {
			stem := trimSuffix(b, suf.from)
			if measure(stem) > 0 {
				return append(stem, suf.to...)
			}
			return b
		}
	}
	return b
}

var step3Suffixes = []struct{ from, to string }{
	{"icate", "ic"}, {"ative", ""}, {"alize", "al"}, {"iciti", "ic"},
	{"ical", "ic"}, {"ful", ""}, {"ness", ""},
}

func step3(b []byte) []byte {
	for _, suf := range step3Suffixes {
		if hasSuffix(b, suf.from) {
			stem := trimSuffix(b, suf.from)
			if measure(stem) > 0 {
				return append(stem, suf.to...)
			}
			return b
		}
	}
	return b
}

var step4Suffixes = []string{
	"al", "ance", "ence", "er", "ic", "able", "ible", "ant", "ement",
	"ment", "ent", "ion", "ou", "ism", "ate", "iti", "ous",
	"ive", "ize",
}

func step4(b []byte) []byte {
	for _, suf := range step4Suffixes {
		if !hasSuffix(b, suf) {
			continue
		}
		stem := trimSuffix(b, suf)
		// "ion" is removed only after an 's' or 't', which stays on the
		// stem per Porter's rule ("adoption" -> "adopt").
		if suf == "ion" && (len(stem) == 0 || (stem[len(stem)-1] != 's' && stem[len(stem)-1] != 't')) {
			return b
		}
		if measure(stem) > 1 {
			return stem
		}
		return b
	}
	return b
}

func step5a(b []byte) []byte {
	if !hasSuffix(b, "e") {
		return b
	}
	stem := trimSuffix(b, "e")
	m := measure(stem)
	if m > 1 {
		return stem
	}
	if m == 1 && !endsCVC(stem) {
		return stem
	}
	return b
}

func step5b(b []byte) []byte {
	if measure(b) > 1 && hasSuffix(b, "l") && endsDoubleConsonant(b) {
		return b[:len(b)-1]
	}
	return b
}

// trimPunctuation strips the leading/trailing punctuation characters
// rr_fts.c trims before stemming (",.:;?!" — §4.F).
func trimPunctuation(s string) string {
	return strings.Trim(s, ",.:;?!")
}
