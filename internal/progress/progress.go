package progress

import "fmt"

// Level indicates the severity/type of a progress message.
type Level int

const (
	LevelInfo Level = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelVerbose:
		return "verbose"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Event is a single diagnostic emitted by the core.
//
// Fields carries structured key/value context (crate name, version, file)
// alongside the human-readable Message. It may be nil.
type Event struct {
	Message string
	Level   Level
	Fields  map[string]any
}

// Func receives progress events. It must be safe for concurrent use: the
// downloader calls it from every in-flight task.
type Func func(Event)

// Emit calls f with event if f is non-nil.
func (f Func) Emit(event Event) {
	if f != nil {
		f(event)
	}
}

// Emitf is shorthand for emitting a formatted message at the given level.
func (f Func) Emitf(level Level, format string, args ...any) {
	if f == nil {
		return
	}
	f(Event{Message: fmt.Sprintf(format, args...), Level: level})
}
