package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/thesyncim/rtcguard/internal/config"
)

// resetGlobalLogger isolates tests from the process-wide singleton.
func resetGlobalLogger() {
	once = sync.Once{}
	globalLogger.Store(nil)
}

func TestInitializeLogger(t *testing.T) {
	t.Run("json logger", func(t *testing.T) {
		resetGlobalLogger()
		buf := new(bytes.Buffer)
		initializeLogger(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "leakcheck"}, zapcore.AddSync(buf))

		GetLogger().Info("offer audited")
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "offer audited", entry["msg"])
		assert.Equal(t, "leakcheck", entry["logger"])
	})

	t.Run("console logger", func(t *testing.T) {
		resetGlobalLogger()
		buf := new(bytes.Buffer)
		initializeLogger(config.LoggerConfig{Level: "debug", Format: "console"}, zapcore.AddSync(buf))

		GetLogger().Debug("gathering")
		Sync()

		assert.Contains(t, buf.String(), "DEBUG")
		assert.Contains(t, buf.String(), "gathering")
	})

	t.Run("level filtering and bad level", func(t *testing.T) {
		resetGlobalLogger()
		buf := new(bytes.Buffer)
		initializeLogger(config.LoggerConfig{Level: "loud", Format: "json"}, zapcore.AddSync(buf))

		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		Sync()

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("only the first call counts", func(t *testing.T) {
		resetGlobalLogger()
		first := new(bytes.Buffer)
		second := new(bytes.Buffer)
		initializeLogger(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(first))
		initializeLogger(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(second))

		GetLogger().Info("once")
		assert.Contains(t, first.String(), "once")
		assert.Empty(t, second.String())
	})
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leakcheck.log")
	console := new(bytes.Buffer)

	logger := NewLogger(config.LoggerConfig{
		Level:   "warn",
		Format:  "console",
		LogFile: path,
		MaxSize: 1,
	}, zapcore.AddSync(console))
	logger.Warn("dropping discovery-only ICE server")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry), "file output is always JSON")
	assert.Equal(t, "WARN", entry["level"])
	assert.Contains(t, console.String(), "dropping discovery-only ICE server")
}

func TestGetLogger_Uninitialized(t *testing.T) {
	resetGlobalLogger()
	assert.NotNil(t, GetLogger())
	assert.NotPanics(t, Sync)
}
