// Package vectorindex maintains the approximate nearest neighbour graph
// used for semantic search, together with the slot mapping that ties graph
// nodes to document IDs.
//
// Two files are written side by side: vectors.hnsw holds the exported
// graph and id-mapping.json holds idToIndex, indexToId and currentIndex.
// Load cross-checks them and refuses inconsistent or wrongly sized data,
// leaving the caller to rebuild from the document store.
//
// The graph has no true delete. Remove unmaps a document and leaves its
// vector behind as a dead slot, so the blob grows with churn until the
// index is reset and rebuilt. DeadCount reports how much is reclaimable.
package vectorindex
