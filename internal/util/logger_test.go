package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerUnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("chatty", "")
	require.NoError(t, err)
	defer logger.Sync()

	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLoggerCreatesLogDirectory(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "scrape.log")

	logger, err := NewLogger("debug", logFile)
	require.NoError(t, err)
	defer logger.Sync()

	logger.Info("hello")
	require.NoError(t, logger.Sync())

	info, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
