package memory

import (
	"math"
	"runtime/debug"
)

const noLimit = math.MaxInt64

func debugLimit() int64 { return debug.SetMemoryLimit(-1) }

func restoreLimit(limit int64) { debug.SetMemoryLimit(limit) }
