package log

import (
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is the shared go-kit logger. Components should prefer a logger
// passed through their constructor; this global exists for main and tests.
var Logger = kitlog.NewNopLogger()

// InitLogger initialises the global logfmt logger at the given level
// ("debug", "info", "warn", "error") and returns it.
func InitLogger(logLevel string) kitlog.Logger {
	writer := kitlog.NewSyncWriter(os.Stderr)
	logger := kitlog.NewLogfmtLogger(writer)

	// use UTC timestamps.
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
	logger = level.NewFilter(logger, levelOption(logLevel))

	Logger = logger
	return logger
}

func levelOption(l string) level.Option {
	switch l {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
