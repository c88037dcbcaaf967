package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the API, session and realtime layers.
// Components get a Scoped logger whose debug output can be switched on
// independently of the global level (AUTH_MIDDLEWARE_DEBUG, SOCKET_DEBUG).

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelFatal: "fatal",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "info"
}

// ParseLevel maps a case-insensitive level name to a Level. Unknown names
// (including "") map to LevelInfo and report false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "fatal":
		return LevelFatal, true
	}
	return LevelInfo, false
}

var (
	mu    sync.RWMutex
	out   = log.New(os.Stdout, "", 0)
	level = LevelInfo
)

// Init sets the global log level from LOG_LEVEL-style text. Call early
// during startup; the default is info.
func Init(l string) {
	lvl, _ := ParseLevel(l)
	mu.Lock()
	level = lvl
	mu.Unlock()
}

// SetOutput redirects every logger, package-level and scoped, to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = log.New(w, "", 0)
	mu.Unlock()
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	return level.String()
}

func enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

// emit writes one line: timestamp, level tag, optional component prefix.
func emit(l Level, prefix, format string, v ...interface{}) {
	mu.RLock()
	w := out
	mu.RUnlock()
	head := fmt.Sprintf("%s [%s] %s", time.Now().Format(time.RFC3339), strings.ToUpper(l.String()), prefix)
	w.Printf(head+format, v...)
}

func Debugf(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		emit(LevelDebug, "", format, v...)
	}
}

func Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		emit(LevelInfo, "", format, v...)
	}
}

func Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		emit(LevelWarn, "", format, v...)
	}
}

func Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		emit(LevelError, "", format, v...)
	}
}

// Fatalf always logs, then exits the process.
func Fatalf(format string, v ...interface{}) {
	emit(LevelFatal, "", format, v...)
	os.Exit(1)
}

// Scoped prefixes every line with a component name. Debug lines are emitted
// when the component switch is on or the global level is debug.
type Scoped struct {
	name  string
	debug bool
}

// Named returns a component logger.
func Named(name string, debug bool) *Scoped {
	return &Scoped{name: name, debug: debug}
}

// DebugEnabled reports whether Debugf produces output.
func (s *Scoped) DebugEnabled() bool {
	return s.debug || enabled(LevelDebug)
}

func (s *Scoped) prefix() string {
	return "[" + s.name + "] "
}

func (s *Scoped) Debugf(format string, v ...interface{}) {
	if s.DebugEnabled() {
		emit(LevelDebug, s.prefix(), format, v...)
	}
}

func (s *Scoped) Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		emit(LevelInfo, s.prefix(), format, v...)
	}
}

func (s *Scoped) Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		emit(LevelWarn, s.prefix(), format, v...)
	}
}

func (s *Scoped) Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		emit(LevelError, s.prefix(), format, v...)
	}
}
