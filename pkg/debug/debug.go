// Package debug provides global verbose logging gates.
//
// Per-frame output (pose scores, suppressed dispatches) is far too noisy for
// the normal debug level, so each stream has its own flag.
package debug

import (
	"fmt"

	"github.com/teslashibe/go-posedrive/internal/log"
)

// Enabled controls whether general debug logging is active.
var Enabled bool

// Pose controls per-frame pose and signal logs.
// Use --debug-pose to enable.
var Pose bool

// Dispatch controls per-submit dispatcher logs, including suppressed ones.
// Use --debug-dispatch to enable.
var Dispatch bool

// Log logs a formatted message only if debug mode is enabled.
func Log(format string, args ...any) {
	if Enabled {
		log.Debug(fmt.Sprintf(format, args...))
	}
}

// PoseLog logs a formatted message only if pose debugging is enabled.
func PoseLog(format string, args ...any) {
	if Pose {
		log.Debug(fmt.Sprintf(format, args...), "stream", "pose")
	}
}

// DispatchLog logs a formatted message only if dispatch debugging is enabled.
func DispatchLog(format string, args ...any) {
	if Dispatch {
		log.Debug(fmt.Sprintf(format, args...), "stream", "dispatch")
	}
}

// SetAll toggles every stream.
func SetAll(on bool) {
	Enabled = on
	Pose = on
	Dispatch = on
}
