package logger

import (
	"os"
	"path/filepath"
	"testing"

	"bollinger-optimizer-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optimizer.log")
	log := New(models.LogConfig{Level: "debug", Output: "file", File: path, MaxSize: 1})

	log.Debug("hello from test")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
	assert.Contains(t, string(data), "DEBUG")
}

func TestNewLevelFallsBackToInfo(t *testing.T) {
	log := New(models.LogConfig{Level: "nonsense", Output: "console"})
	assert.Nil(t, log.Check(zap.DebugLevel, "debug"))
	assert.NotNil(t, log.Check(zap.InfoLevel, "info"))
}

func TestGlobalLoggerIsNeverNil(t *testing.T) {
	assert.NotNil(t, S())
	InitLogger(models.LogConfig{Level: "warn"})
	assert.NotNil(t, L().Check(zap.WarnLevel, "warn"))
}
