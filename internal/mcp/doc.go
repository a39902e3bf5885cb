// Package mcp implements the Model Context Protocol (MCP) server for docsearch.
//
// The MCP server exposes the documentation index to AI assistants:
//   - search_docs: Hybrid, semantic or keyword search over indexed docs
//   - get_stats: Document counts per framework/version and index health
//   - add_document: Index one page (text, markdown or html)
//   - delete_document: Remove a page by id
//   - clear_framework_version: Remove every page of one framework version
//   - rebuild_index: Rebuild the vector index, reclaiming deleted slots
//   - get_document: Fetch a stored page and its keywords
//   - register_framework / list_frameworks: Framework registry
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. The server reads
// requests on stdin and writes responses on stdout, so all logging goes to
// stderr.
//
// # Basic Usage
//
//	docsearch serve
//
// Serve starts index initialization in the background so the server answers
// the MCP handshake at once. Every tool that reads the index waits for that
// initialization; if it fails, the tool returns error code -32003 instead
// of an empty result.
//
// # Tool: search_docs
//
//	Request:
//	{
//	  "name": "search_docs",
//	  "arguments": {
//	    "query": "state management hooks",
//	    "framework": "react",
//	    "limit": 5,
//	    "mode": "hybrid",
//	    "hybridAlpha": 0.7
//	  }
//	}
//
//	Response:
//	{
//	  "success": true,
//	  "resultCount": 1,
//	  "mode": "hybrid",
//	  "results": [
//	    {
//	      "id": "6f1c...",
//	      "framework": "react",
//	      "version": "18.2.0",
//	      "path": "reference/react/useState",
//	      "title": "useState",
//	      "snippet": "useState is a React Hook that lets you add a state variable...",
//	      "score": 0.93
//	    }
//	  ]
//	}
//
// A response produced by the keyword fallback carries "fallback": true.
//
// # Error Handling
//
// Malformed arguments are returned as JSON-RPC errors:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "limit must be between 1 and 100",
//	    "data": {"param": "limit", "value": 500}
//	  }
//	}
//
// Failures of a valid request are returned as tool results with isError set
// and a JSON body such as {"success": false, "error": "...", "code": -32005}.
//
// Error codes:
//   - -32602: Invalid params
//   - -32603: Internal error
//   - -32001: Document or framework not found
//   - -32002: Rebuild already in progress
//   - -32003: Index could not be initialized
//   - -32004: Empty query
//   - -32005: Search failed in every mode
//   - -32006: Index or registry files could not be written
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "docsearch": {
//	      "command": "/usr/local/bin/docsearch",
//	      "args": ["serve"],
//	      "env": {
//	        "JINA_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
package mcp
