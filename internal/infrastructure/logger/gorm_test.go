package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("should log errors with request and actor ids", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn)
		ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
		ctx = context.WithValue(ctx, ActorIDKey, "actor-1")

		gl.Trace(ctx, time.Now(), sqlFn("UPDATE vouchers SET status = 'used'", 0), errors.New("deadlock"))

		entries := recorded.FilterMessage("SQL Error").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "actor-1", fields["actor_id"])
	})

	t.Run("should ignore record not found", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn)
		gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("should flag slow statements", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		gl.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn("SELECT * FROM refunds", 3), nil)

		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, zapcore.WarnLevel, recorded.All()[0].Level)
	})

	t.Run("should stay quiet when silent", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Silent)
		gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 1), errors.New("x"))
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("should log regular statements at debug when level is info", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info)
		gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 1), nil)
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, zapcore.DebugLevel, recorded.All()[0].Level)
	})
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info, WithIgnoreRecordNotFoundError(false))
	changed, ok := gl.LogMode(gormlogger.Error).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, gormlogger.Error, changed.logLevel)
	assert.False(t, changed.ignoreRecordNotFoundError)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
