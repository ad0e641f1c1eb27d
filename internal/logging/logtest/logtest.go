// Package logtest provides loggers for tests.
package logtest

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/llm-d/course-bidding/internal/logging"
)

// New returns a logger that writes through t at full verbosity.
func New(t zaptest.TestingT) logr.Logger {
	return zapr.NewLogger(zaptest.NewLogger(t, zaptest.Level(zapcore.Level(-logging.TRACE))))
}
