package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_LevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	log.Debug("dbg", Int("a", 1))
	log.Info("inf", String("b", "2"))
	log.Warning("wrn", Bool("c", true))
	log.Error("err", Error(errors.New("boom")))

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "boom", entries[3].ContextMap()["error"])
}

func TestLogger_WithAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := FromZap(zap.New(core)).With(Int64("document_id", 42))

	log.Info("approved")

	entries := logs.FilterMessage("approved").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(42), entries[0].ContextMap()["document_id"])
}

func TestNew_UnknownLevelDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		l := New("taxidocs-test", "loud")
		l.Info("ok")
	})
	assert.NotPanics(t, func() { NewNop().Error("discarded") })
}
