package logging

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
)

// AsynqLogger routes asynq server logs through logger.
func AsynqLogger(logger *slog.Logger) asynq.Logger {
	return asynqLogger{logger: WithComponent(logger, "asynq")}
}

// AsynqLevel maps a level name to the asynq log level.
func AsynqLevel(level string) asynq.LogLevel {
	switch ParseLevel(level) {
	case slog.LevelDebug:
		return asynq.DebugLevel
	case slog.LevelWarn:
		return asynq.WarnLevel
	case slog.LevelError:
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}

type asynqLogger struct {
	logger *slog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }

func (l asynqLogger) Info(args ...interface{}) { l.logger.Info(fmt.Sprint(args...)) }

func (l asynqLogger) Warn(args ...interface{}) { l.logger.Warn(fmt.Sprint(args...)) }

func (l asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }

func (l asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
