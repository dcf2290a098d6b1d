// File: internal/observability/logger_test.go
package observability

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/coursepack/internal/config"
)

// memSink is a minimal WriteSyncer capturing console output for assertions.
type memSink struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (m *memSink) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Write(p)
}

func (m *memSink) Sync() error { return nil }

func (m *memSink) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.String()
}

func TestInitializeAndGet(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSink{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "coursepack-test",
	}, zapcore.Lock(sink))

	logger := GetLogger()
	require.NotNil(t, logger)

	logger.Info("hello from the test")
	assert.Contains(t, sink.String(), "hello from the test")
	assert.Contains(t, sink.String(), "coursepack-test")
}

func TestInitializeOnlyRunsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &memSink{}
	second := &memSink{}
	Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "one"}, zapcore.Lock(first))
	Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "two"}, zapcore.Lock(second))

	GetLogger().Info("routed to the first sink")
	assert.Contains(t, first.String(), "routed to the first sink")
	assert.Empty(t, second.String())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSink{}
	Initialize(config.LoggerConfig{Level: "definitely-not-a-level", Format: "console", ServiceName: "x"}, zapcore.Lock(sink))

	GetLogger().Debug("should be suppressed")
	GetLogger().Info("should appear")

	out := sink.String()
	assert.NotContains(t, out, "should be suppressed")
	assert.Contains(t, out, "should appear")
}
