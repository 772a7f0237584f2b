// Package debug provides global debug logging flags
package debug

import "fmt"

// Enabled controls whether debug logging is active
var Enabled bool

// Render controls the per-tick render statistics (every 30th tick).
// Use --debug-render to enable; it is noisy at 30 fps.
var Render bool

// Captions logs every partial transcript from the recognizer.
var Captions bool

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled || Render {
		fmt.Printf(format, args...)
	}
}

// Logln prints a message with newline only if debug mode is enabled
func Logln(msg string) {
	if Enabled {
		fmt.Println(msg)
	}
}

// CaptionLog prints a message only if caption debug mode is enabled
func CaptionLog(format string, args ...interface{}) {
	if Captions {
		fmt.Printf(format, args...)
	}
}
