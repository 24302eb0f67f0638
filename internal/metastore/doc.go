// Package metastore caches video probe results in SQLite so repeated
// metadata requests for an unchanged file do not spawn ffprobe again.
//
// Rows are keyed by absolute path and are only returned while the file's
// size and modification time match the values recorded at probe time.
// A [Store] satisfies probe.Cache.
package metastore
