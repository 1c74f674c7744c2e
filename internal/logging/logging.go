package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents the severity of a log message.
type Level int

// Levels in ascending severity. The resolved default is LevelInfo.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

// levelTags are the line prefixes, indexed by Level.
var levelTags = [...]string{"[DEBUG] ", "[INFO] ", "[WARN] ", "[ERROR] "}

var levelByName = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var (
	levelOnce    sync.Once
	currentLevel Level
)

// parseLevel maps a LOG_LEVEL value to a Level. The boolean is false when
// the value is empty or unrecognized, in which case LevelInfo is returned.
func parseLevel(s string) (Level, bool) {
	level, ok := levelByName[strings.ToLower(s)]
	if !ok {
		return LevelInfo, false
	}
	return level, true
}

// debugRequested reports whether a DEBUG environment value asks for
// debug-level logging.
func debugRequested(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// initLevel resolves the log level from the environment. DEBUG wins over
// LOG_LEVEL; the first resolution is permanent.
func initLevel() {
	levelOnce.Do(func() {
		if debugRequested(os.Getenv("DEBUG")) {
			currentLevel = LevelDebug
			return
		}
		currentLevel, _ = parseLevel(os.Getenv("LOG_LEVEL"))
	})
}

// GetLevel resolves and returns the active level.
func GetLevel() Level {
	initLevel()
	return currentLevel
}

// IsDebugEnabled reports whether debug lines will be emitted.
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// logf prints one tagged line when level passes the filter.
func logf(level Level, format string, args ...any) {
	if GetLevel() <= level {
		log.Printf(levelTags[level]+format, args...)
	}
}

// Debug logs at debug level; enable with DEBUG=true or LOG_LEVEL=debug.
func Debug(format string, args ...any) { logf(LevelDebug, format, args...) }

// Info, Warn, and Error log at their respective levels.
func Info(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warn(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Error(format string, args ...any) { logf(LevelError, format, args...) }

// Fatal logs and terminates the process.
func Fatal(format string, args ...any) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Printf and Println bypass the level filter for output that must always
// appear.
func Printf(format string, args ...any) { log.Printf(format, args...) }

func Println(args ...any) { log.Println(args...) }

// String returns the lowercase name of the level.
func (l Level) String() string {
	if l >= LevelDebug && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("unknown(%d)", l)
}
