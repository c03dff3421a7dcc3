package logger_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"adminconsole/pkg/logger"
)

func TestNewLogger(t *testing.T) {
	levels := []string{"debug", "info", "warn", "warning", "error", "invalid", ""}

	for _, env := range []logger.Environment{logger.Development, logger.Production} {
		for _, level := range levels {
			t.Run(string(env)+"/level="+level, func(t *testing.T) {
				log, err := logger.NewLogger(env, level)
				require.NoError(t, err)
				require.NotNil(t, log)
			})
		}
	}

	t.Run("with method creates new logger instance", func(t *testing.T) {
		log, err := logger.NewLogger(logger.Development, "info")
		require.NoError(t, err)

		newLog := log.With()
		assert.NotNil(t, newLog)
		assert.NotSame(t, log, newLog)
	})
}

func TestFromContext(t *testing.T) {
	t.Run("success when logger exists in context", func(t *testing.T) {
		testLogger, err := logger.NewLogger(logger.Development, "debug")
		require.NoError(t, err)

		ctx := logger.NewContext(context.Background(), testLogger)

		retrieved, err := logger.FromContext(ctx)
		require.NoError(t, err)
		assert.Same(t, testLogger, retrieved)
	})

	t.Run("error when no logger in context", func(t *testing.T) {
		retrieved, err := logger.FromContext(context.Background())
		require.Error(t, err)
		assert.Nil(t, retrieved)
		assert.ErrorIs(t, err, logger.ErrLoggerNotFound)
	})

	t.Run("error when context has non-logger values", func(t *testing.T) {
		type ctxKeyType struct{}

		ctx := context.WithValue(context.Background(), ctxKeyType{}, "not a logger")

		retrieved, err := logger.FromContext(ctx)
		require.Error(t, err)
		assert.Nil(t, retrieved)
		assert.ErrorIs(t, err, logger.ErrLoggerNotFound)
	})
}

func TestInitGlobalLogger(t *testing.T) {
	defer logger.SetGlobalLogger(nil)

	t.Run("returns nil when global logger already exists", func(t *testing.T) {
		logger.SetGlobalLogger(nil)

		require.NoError(t, logger.InitGlobalLogger(logger.Production))
		first := logger.Log(context.Background())

		require.NoError(t, logger.InitGlobalLoggerWithLevel(logger.Development, "debug"))
		second := logger.Log(context.Background())

		assert.Same(t, first, second)
	})
}

func TestLog(t *testing.T) {
	defer logger.SetGlobalLogger(nil)

	t.Run("returns logger from context when available", func(t *testing.T) {
		contextLogger, err := logger.NewLogger(logger.Development, "debug")
		require.NoError(t, err)
		globalLogger, err := logger.NewLogger(logger.Production, "error")
		require.NoError(t, err)
		logger.SetGlobalLogger(globalLogger)

		result := logger.Log(logger.NewContext(context.Background(), contextLogger))
		assert.Same(t, contextLogger, result)
	})

	t.Run("returns global logger when no logger in context", func(t *testing.T) {
		globalLogger, err := logger.NewLogger(logger.Development, "info")
		require.NoError(t, err)
		logger.SetGlobalLogger(globalLogger)

		assert.Same(t, globalLogger, logger.Log(context.Background()))
	})

	t.Run("returns the same fallback logger instance each time", func(t *testing.T) {
		logger.SetGlobalLogger(nil)

		first := logger.Log(context.Background())
		second := logger.Log(context.Background())

		require.NotNil(t, first)
		assert.Same(t, first, second)
	})
}

func TestRequestID(t *testing.T) {
	t.Run("empty id is generated", func(t *testing.T) {
		ctx := logger.NewRequestIDContext(context.Background(), "")

		id, ok := logger.GetRequestID(ctx)
		require.True(t, ok)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})

	t.Run("request id is attached to log entries", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		log := logger.NewFromZap(zap.New(core))

		ctx := logger.NewRequestIDContext(context.Background(), "req-42")
		log.Info(ctx, "hello")

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, "hello", entry.Message)
		assert.Equal(t, "req-42", entry.ContextMap()[logger.RequestID])
	})

	t.Run("WithRequestID keeps logger without id", func(t *testing.T) {
		log, err := logger.NewLogger(logger.Development, "debug")
		require.NoError(t, err)

		assert.Same(t, log, log.WithRequestID(context.Background()))
		assert.NotSame(t, log, log.WithRequestID(logger.NewRequestIDContext(context.Background(), "x")))
	})
}

func TestAcceptRequestID(t *testing.T) {
	assert.Equal(t, "req-42", logger.AcceptRequestID(" req-42 "))

	for name, incoming := range map[string]string{
		"empty":     "",
		"too long":  strings.Repeat("a", logger.MaxRequestIDLength+1),
		"newline":   "abc\ninjected",
		"non ascii": "запрос",
	} {
		t.Run(name, func(t *testing.T) {
			id := logger.AcceptRequestID(incoming)
			_, err := uuid.Parse(id)
			assert.NoError(t, err)
		})
	}
}

func TestDetachContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewFromZap(zap.New(core))

	parent, cancel := context.WithCancel(logger.NewContext(
		logger.NewRequestIDContext(context.Background(), "req-7"), log))
	cancel()

	detached := logger.DetachContext(parent)
	require.NoError(t, detached.Err())

	id, ok := logger.GetRequestID(detached)
	require.True(t, ok)
	assert.Equal(t, "req-7", id)

	logger.Log(detached).Info(detached, "background")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-7", logs.All()[0].ContextMap()[logger.RequestID])
}
