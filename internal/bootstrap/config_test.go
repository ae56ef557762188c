package bootstrap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/target/ledgerly/config"
)

func TestInitLogger_FormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := initLogger(&buf, config.LogConfig{Level: "warn", Format: "text"})

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "key=value")

	buf.Reset()
	logger = initLogger(&buf, config.LogConfig{Level: "info", Format: "json"})
	logger.Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "mock")
	t.Setenv("STORAGE_BACKEND", "memory")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	assert.Equal(t, config.AuthModeMock, cfg.Auth.Mode)
	assert.Equal(t, config.StorageMemory, cfg.Storage.Backend)
}
