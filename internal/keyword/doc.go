// Package keyword implements the lexical side of hybrid search.
//
// Documents are scored per query term: a title match, a body match with a
// capped bonus for repeats, and a smaller bonus when the term is one of the
// document's top keywords. Matching is case-insensitive substring matching,
// so "component" also matches "components". Documents that score zero are
// never returned.
package keyword
