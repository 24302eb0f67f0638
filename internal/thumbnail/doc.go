// Package thumbnail maintains the on-disk cache of video stills.
//
// Each video maps to <cache-dir>/<md5 of absolute path>.<ext>. The presence
// of a non-empty file at that path is the only hit signal: no index is kept,
// nothing is ever evicted by this package, and a cached still is never
// regenerated. Callers that need invalidation remove the file.
//
// Misses run ffmpeg through a process.Spawner to grab a single frame, first
// at a nominal offset (one second by default) and, for videos shorter than
// that, again at the first frame. Output is written to a temporary file and
// renamed into place so readers never see a partial image.
package thumbnail
