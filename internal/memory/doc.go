// Package memory sizes the Go heap for a container and gates new previews
// when memory runs short.
//
// # GOMEMLIMIT
//
// Go does not read the cgroup memory limit, so [ConfigureFromEnv] derives
// GOMEMLIMIT from MEMORY_LIMIT (usually injected with the Downward API)
// times MEMORY_RATIO. An explicit GOMEMLIMIT wins.
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
//
// The default ratio is lower than for a pure Go service: every preview runs
// an ffmpeg child outside the Go heap, and libvips allocates through cgo.
//
// # Admission
//
// Each preview holds two RGB24 frame buffers, up to a few megabytes each.
// [Monitor] samples the heap and, above the critical water mark, makes
// [Monitor.Admit] refuse new previews until usage falls back under the high
// water mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	manager := playback.NewManager(sup, prober, playback.ManagerConfig{
//		Admit: monitor.Admit,
//	})
//
// Batch work such as thumbnail prewarming calls [Monitor.Wait] between items.
package memory
