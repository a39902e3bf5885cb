// Package storage persists the framework registry in SQLite.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations
//   - frameworks: one row per framework; source_type names the variant
//     (npm, python, github, custom) and source holds its JSON payload
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(filepath.Join(dataDir, "registry.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = db.UpsertFramework(ctx, &types.Framework{
//	    Name:   "react",
//	    Source: types.NPMSource{Package: "react"},
//	})
//
//	npm, err := db.ListFrameworks(ctx, storage.ListFilter{SourceType: types.SourceNPM})
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
//
// # Migrations
//
// Migrations are ordered by semantic version and each runs in its own
// transaction together with its schema_version record.
package storage
