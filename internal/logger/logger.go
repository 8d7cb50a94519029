package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is a no-op until Init runs so that
// packages can log from tests without setup.
var Log = zap.NewNop()

// S returns the sugared logger for printf-style messages.
func S() *zap.SugaredLogger {
	return Log.Sugar()
}

func Init(env string) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.Config{
			Encoding:         "json",
			Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
			EncoderConfig: zapcore.EncoderConfig{
				TimeKey:        "time",
				LevelKey:       "level",
				MessageKey:     "message",
				CallerKey:      "caller",
				EncodeTime:     zapcore.ISO8601TimeEncoder,
				EncodeLevel:    zapcore.CapitalLevelEncoder,
				EncodeCaller:   zapcore.ShortCallerEncoder,
				EncodeDuration: zapcore.StringDurationEncoder,
			},
		}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		// keep stdout free for the terminal renderer
		cfg.OutputPaths = []string{"stderr"}
	}

	l, err := cfg.Build()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = l
	Log.Info("logger initialized", zap.String("env", env))
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
