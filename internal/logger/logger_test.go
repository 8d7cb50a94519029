package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestInitSwapsGlobalLogger(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	Init("production")
	assert.True(t, Log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Log.Core().Enabled(zapcore.DebugLevel))

	Init("development")
	assert.True(t, Log.Core().Enabled(zapcore.DebugLevel))
	assert.NotNil(t, S())
}

func TestDefaultIsNop(t *testing.T) {
	assert.False(t, Log.Core().Enabled(zapcore.ErrorLevel))
	S().Infof("safe before Init: %d", 1)
}
