package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		require.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetup_ReplacesGlobals(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	logger := Setup("warn", "console")
	require.Same(t, logger, zap.L())
	require.False(t, zap.L().Core().Enabled(zapcore.InfoLevel))
	require.True(t, zap.L().Core().Enabled(zapcore.ErrorLevel))
}
