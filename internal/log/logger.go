package log

import (
	"log"
	"os"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger installs the global zap logger: JSON lines to path, coloured
// output on stdout and, with a DSN, errors to Sentry.
func NewLogger(path string, debug bool, sentryDsn string, service string) {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	logger := zap.New(newCore(path, level))
	if service != "" {
		logger = logger.With(zap.String("service", service))
	}
	defer logger.Sync()

	if sentryDsn != "" {
		logger = modifyToSentryLogger(logger, sentryDsn, service)
	}

	zap.ReplaceGlobals(logger)
}

func newCore(path string, level zapcore.Level) zapcore.Core {
	pe := zap.NewProductionEncoderConfig()
	pe.EncodeTime = zapcore.ISO8601TimeEncoder
	pe.MessageKey = "message"
	pe.TimeKey = "time"
	fileEncoder := zapcore.NewJSONEncoder(pe)

	pe.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(pe)

	consoleCore := zapcore.NewCore(consoleEncoder, zapcore.AddSync(colorable.NewColorableStdout()), level)
	if path == "" {
		return consoleCore
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatal(err)
	}

	return zapcore.NewTee(
		zapcore.NewCore(fileEncoder, zapcore.AddSync(f), level),
		consoleCore,
	)
}

func modifyToSentryLogger(log *zap.Logger, DSN string, service string) *zap.Logger {
	cfg := zapsentry.Configuration{
		Level:             zapcore.ErrorLevel,
		EnableBreadcrumbs: true,
		BreadcrumbLevel:   zapcore.InfoLevel,
		Tags: map[string]string{
			"component": service,
		},
	}
	core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromDSN(DSN))

	// breadcrumbs need an explicit scope
	log = log.With(zapsentry.NewScope())

	// on error zapsentry returns a noop core
	if err != nil {
		log.Warn("failed to init zap", zap.Error(err))
	}
	return zapsentry.AttachCoreToLogger(core, log)
}
