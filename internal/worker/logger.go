package worker

import (
	"fmt"

	"github.com/punchcard-next/internal/logger"
)

// asynqLogger 将 asynq 内部日志接入全局 zap
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) {
	logger.Debugw("asynq", "detail", fmt.Sprint(args...))
}

func (asynqLogger) Info(args ...interface{}) {
	logger.Infow("asynq", "detail", fmt.Sprint(args...))
}

func (asynqLogger) Warn(args ...interface{}) {
	logger.Warnw("asynq", "detail", fmt.Sprint(args...))
}

func (asynqLogger) Error(args ...interface{}) {
	logger.Errorw("asynq", "detail", fmt.Sprint(args...))
}

func (asynqLogger) Fatal(args ...interface{}) {
	logger.Z().Fatal(fmt.Sprint(args...))
}
