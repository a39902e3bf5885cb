// Package ingest turns raw files into document text. HTML is parsed with
// goquery: navigation, headers, footers and scripts are dropped and the
// main content area is flattened to one line per block element.
package ingest
