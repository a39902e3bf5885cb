package keyword

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTermLength is the shortest token, in runes, that takes part in
// scoring. Shorter tokens are dropped from queries and keyword sets.
const MinTermLength = 3

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "this": {}, "that": {}, "with": {},
	"from": {}, "they": {}, "will": {}, "would": {}, "there": {}, "their": {},
	"what": {}, "about": {}, "which": {}, "when": {}, "make": {}, "like": {},
	"than": {}, "then": {}, "them": {}, "these": {}, "some": {}, "into": {},
	"also": {}, "its": {}, "your": {}, "more": {}, "other": {}, "only": {},
	"such": {}, "each": {}, "how": {}, "use": {}, "used": {}, "using": {},
	"may": {}, "should": {}, "could": {}, "been": {}, "were": {}, "does": {},
	"here": {}, "where": {}, "who": {}, "why": {}, "very": {}, "just": {},
}

// IsStopword reports whether a lowercase token is too common to be a keyword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit, keeping tokens of at least MinTermLength runes.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= MinTermLength {
			out = append(out, f)
		}
	}
	return out
}

// QueryTerms tokenizes a query and removes duplicate terms, keeping the
// first occurrence order.
func QueryTerms(query string) []string {
	tokens := Tokenize(query)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// Keywords returns the n most frequent non-stopword tokens of text,
// ordered by frequency and then alphabetically.
func Keywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, tok := range Tokenize(text) {
		if IsStopword(tok) {
			continue
		}
		counts[tok]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if n > 0 && len(words) > n {
		words = words[:n]
	}
	return words
}
