package logger

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

const header = `{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`

// New builds the application logger. It is the same logger type echo uses,
// so it can be installed as e.Logger.
func New(level string) *log.Logger {
	l := log.New("useradmin")
	l.SetOutput(os.Stdout)
	l.SetHeader(header)
	l.SetLevel(ParseLevel(level))
	return l
}

// Discard returns a logger that writes nowhere, for tests.
func Discard() *log.Logger {
	l := log.New("useradmin")
	l.SetOutput(io.Discard)
	l.SetLevel(log.OFF)
	return l
}

// ParseLevel maps LOG_LEVEL values onto gommon levels; unknown values mean INFO.
func ParseLevel(level string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off", "none":
		return log.OFF
	default:
		return log.INFO
	}
}
