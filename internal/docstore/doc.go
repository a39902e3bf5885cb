// Package docstore holds the authoritative document records in memory and
// persists them to documents.json in the index directory.
package docstore
