// Package debug provides global debug logging flags
package debug

import "github.com/teslashibe/go-armmodel/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls whether every tracker frame is logged (very verbose).
// Use --debug-frames to enable.
var Frames bool

// Log logs msg at debug level only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// FrameLog logs msg only if per-frame logging is enabled
func FrameLog(msg string, args ...any) {
	if Frames {
		log.Debug(msg, args...)
	}
}
