package debug

import (
	"io"
	"log"
	"os"
	"sync"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (run summary, convergence)
	LevelLive    = 2 // Live info (spot, directions, moves, keyframes)
	LevelVerbose = 3 // Verbose (config, frame details)
	LevelTrace   = 4 // Trace (GPIO, actuator writes)
)

const prefix = "[SolarGo] "

var (
	mu     sync.RWMutex
	level  int
	out    io.Writer = os.Stdout
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (run summary, convergence, bound violations)
// 2 = live info (bright spot, directions, moves, keyframes)
// 3 = verbose (configuration, frame details)
// 4 = trace (GPIO, actuator writes)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	if level > LevelOff {
		logger = log.New(out, prefix, log.LstdFlags|log.Lmicroseconds)
	} else {
		logger = nil
	}
}

// SetOutput redirects log output, e.g. to tee it into the web status stream.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the current debug level.
func Level() int {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

func printf(minLevel int, format string, args ...interface{}) {
	mu.RLock()
	l, lg := level, logger
	mu.RUnlock()
	if l >= minLevel && lg != nil {
		lg.Printf(format, args...)
	}
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	printf(LevelInfo, "[INFO] "+format, args...)
}

// Summary prints an important summary banner.
func Summary(title string) {
	printf(LevelInfo, "═══════════════════════════════════════")
	printf(LevelInfo, "  %s", title)
	printf(LevelInfo, "═══════════════════════════════════════")
}

// Bound reports a move rejected by the axis limits.
func Bound(axis string, requested, min, max float64) {
	printf(LevelInfo, "[INFO] Impossible move on %s: %.2f° outside [%.2f°, %.2f°]", axis, requested, min, max)
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	printf(LevelLive, "[LIVE] "+format, args...)
}

// Iteration prints the start of a tracker iteration.
func Iteration(n, frame int) {
	printf(LevelLive, "[LIVE] Iteration %d (frame %d)", n, frame)
}

// Spot prints the located bright spot.
func Spot(x, y int, intensity uint8) {
	printf(LevelLive, "[LIVE] Bright spot at (%d, %d) intensity=%d", x, y, intensity)
}

// Directions prints a classified direction pair.
func Directions(horizontal, vertical string) {
	printf(LevelLive, "[LIVE] Directions: horizontal=%s vertical=%s", horizontal, vertical)
}

// Move prints an applied axis movement.
func Move(axis string, deltaDeg, angleDeg float64) {
	printf(LevelLive, "[LIVE] Axis %s: %+.2f° -> %.2f°", axis, deltaDeg, angleDeg)
}

// Keyframe prints a recorded keyframe.
func Keyframe(frame int, tiltDeg, rotationDeg float64) {
	printf(LevelLive, "[LIVE] Keyframe at frame %d: tilt=%.2f° rotation=%.2f°", frame, tiltDeg, rotationDeg)
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	printf(LevelVerbose, "[VERBOSE] "+format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	printf(LevelVerbose, "[VERBOSE] %s: %+v", name, v)
}

// Section prints a section separator (level 3).
func Section(name string) {
	printf(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	printf(LevelVerbose, "  %s", name)
	printf(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	printf(LevelVerbose, "[VERBOSE] Step %d: %s", num, description)
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	printf(LevelInfo, "[INFO]   %s = %v", name, value)
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message.
func Trace(format string, args ...interface{}) {
	printf(LevelTrace, "[TRACE] "+format, args...)
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	printf(LevelTrace, "[GPIO] %s pin=%d value=%v", operation, pin, value)
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	printf(LevelInfo, "[ERROR] %v", err)
}
