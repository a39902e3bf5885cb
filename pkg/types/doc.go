// Package types provides shared type definitions for the documentation search server.
//
// # Documents
//
// Document is the unit of storage and retrieval. Ingestion supplies a
// DocumentInput; the indexer assigns the ID and timestamp and, when the
// embedding provider succeeds, attaches a cached vector:
//
//	in := types.DocumentInput{
//	    Framework: "react",
//	    Version:   "18.0.0",
//	    Title:     "React Hooks Tutorial",
//	    Content:   "Learn how to use React hooks...",
//	}
//	if err := in.Validate(); err != nil {
//	    return err
//	}
//
// (framework, version) is a non-unique grouping key used for filtering and
// bulk deletion.
//
// # Framework Registry
//
// Framework registry entries carry a FrameworkSource, a closed tagged union
// of NPMSource, PythonSource, GitHubSource and CustomSource. Each variant
// holds only the fields that make sense for it:
//
//	fw := types.Framework{
//	    Name:   "vue",
//	    Source: types.GitHubSource{Owner: "vuejs", Repo: "docs"},
//	}
//
// # Errors
//
// errors.go defines the error taxonomy (ErrEmbedding, ErrStorage,
// ErrDimensionMismatch, ErrSearch, ErrIndexNotInitialized and friends).
// Every package wraps these so callers can use errors.Is regardless of
// which layer failed.
package types
