// Package mediatypes holds the extension tables shared by the preview
// engine: which files are treated as videos, which thumbnail formats can be
// produced, and the MIME types served for both.
//
// It has no dependencies beyond the standard library so any package can
// import it without creating cycles.
//
//	if mediatypes.IsVideo(path) {
//	    // offer a thumbnail and a live preview
//	}
package mediatypes
