// Package playback streams decoded video frames from an ffmpeg subprocess
// to a renderer.
//
// A Session owns at most one decoder at a time. A background goroutine
// reads fixed-size RGB24 frames from the decoder's stdout, paces them to
// the source frame rate and copies each one into a presentation buffer
// under a mutex. The renderer polls AcquireLatestFrame from its own loop
// and never blocks on the decoder. The exchange is latest-wins: a frame
// the renderer has not taken yet is overwritten by the next one and
// counted as dropped.
//
// Stop and the teardown triggered by Poll after the end of the stream
// always join the goroutine and reap the decoder, escalating to SIGKILL
// when SIGTERM is ignored.
//
// Manager keeps a bounded set of sessions addressed by id for clients
// that have no render loop, such as the HTTP harness.
package playback
