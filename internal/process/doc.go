// Package process supervises the ffmpeg and ffprobe subprocesses used by the
// preview engine.
//
// A [Supervisor] spawns a process described by a [Spec], optionally wiring
// its stdout to an os.Pipe whose read end stays in the parent. Every spawned
// process gets a waiter goroutine that calls Wait exactly once, so a
// [Handle] never leaks a zombie regardless of how its owner tears it down.
//
// Teardown is two-phase: [Handle.Terminate] sends SIGTERM, waits up to a
// hard timeout, then sends SIGKILL and blocks until the process is reaped.
// Cancelling the context passed to Spawn follows the same path, with the
// supervisor's kill delay as the timeout.
//
// [Supervisor.Output] is the short-lived variant used for probes: it reads a
// bounded amount of stdout and reaps the process before returning.
package process
