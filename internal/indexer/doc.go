// Package indexer keeps the document store, the vector index and the keyword
// index consistent with each other.
//
// # Basic Usage
//
//	emb, _ := embedder.NewFromEnv(ctx)
//	idx, err := indexer.New(indexer.Config{Dir: "./docs-index"}, emb, logger)
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	errCh := idx.Start(ctx) // load in the background
//
//	doc, err := idx.AddDocument(ctx, types.DocumentInput{
//	    Framework: "react",
//	    Version:   "18.0.0",
//	    Title:     "React Hooks Tutorial",
//	    Content:   "...",
//	})
//
// # Files
//
// Three files live in Config.Dir:
//
//	documents.json   document metadata, content and (optionally) embeddings
//	vectors.hnsw     the HNSW graph
//	id-mapping.json  document id <-> graph slot mapping
//
// Every mutation writes all three before returning. When a write fails the
// in-memory state is kept, the error (wrapping types.ErrStorage) is returned
// and Close retries the write.
//
// # Initialization
//
// Initialize is idempotent. It loads documents, rebuilds the keyword index
// and then loads the vector index. The vector index is rebuilt from stored
// documents when:
//
//   - its dimension differs from the embedder's
//   - the graph and mapping files disagree, or only one exists
//   - it is empty while documents exist
//
// Smaller drift, such as a crash between writing documents.json and the
// vector files, is reconciled in place using cached embeddings.
//
// # Embedding Failures
//
// A document whose embedding fails is still stored and searchable by
// keyword. RebuildIndex retries the embedding.
//
// # Deletion and Capacity
//
// The graph does not support removal. Deleting a document drops its mapping
// and leaves a dead slot that searches skip. When the graph reaches
// MaxElements with dead slots present, the next insert compacts the index by
// rebuilding it.
//
// # Concurrency
//
// Mutations hold an exclusive lock; searches hold it shared. Embedding calls
// for new documents are made before the lock is taken, and batch embedding
// uses an errgroup limited to Config.Workers. Only one RebuildIndex runs at a
// time; a second call returns types.ErrRebuildInProgress.
package indexer
