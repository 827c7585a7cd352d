package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger()
	require.NoError(t, err)
	require.NotNil(t, log)

	// Should not panic when logging
	log.Info("test message", zap.String("key", "value"))
	assert.NoError(t, log.Sync())
}

func TestNewNopLogger(t *testing.T) {
	log := NewNopLogger()
	require.NotNil(t, log)
	log.Error("dropped")
	assert.NoError(t, log.Sync())
}
