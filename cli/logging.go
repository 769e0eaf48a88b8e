package cli

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/firstissue/firstissue/internal/logging"
)

var logLevel = app.Flag("log-level", "Log level").Default("info").Enum("debug", "info", "warn", "error")

// rootContext returns the top-level context with the console logger attached.
func rootContext() context.Context {
	level, err := zapcore.ParseLevel(*logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	return logging.WithLogger(context.Background(), consoleFactory(level))
}

func consoleFactory(level zapcore.Level) logging.LoggerFactory {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			TimeKey:        "T",
			LevelKey:       "L",
			NameKey:        "N",
			MessageKey:     "M",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		}),
		zapcore.Lock(os.Stderr),
		level,
	)

	return func(module string) logging.Logger {
		return zap.New(core).Named(module).Sugar()
	}
}
