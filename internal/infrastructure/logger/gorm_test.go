package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogger_Trace(t *testing.T) {
	ctx := WithIntegrationID(context.Background(), "int-7")
	query := func() (string, int64) { return "SELECT * FROM product_mappings", 3 }

	t.Run("error is logged with context fields", func(t *testing.T) {
		var buf bytes.Buffer
		gl := NewGormLogger(newBufferLogger(&buf), gormlogger.Info)
		gl.Trace(ctx, time.Now(), query, errors.New("connection reset"))

		out := buf.String()
		assert.Contains(t, out, "Query failed")
		assert.Contains(t, out, `"integration_id":"int-7"`)
		assert.Contains(t, out, "connection reset")
	})

	t.Run("record not found is ignored", func(t *testing.T) {
		var buf bytes.Buffer
		gl := NewGormLogger(newBufferLogger(&buf), gormlogger.Info)
		gl.Trace(ctx, time.Now(), query, gormlogger.ErrRecordNotFound)
		assert.Empty(t, buf.String())
	})

	t.Run("record not found can be logged", func(t *testing.T) {
		var buf bytes.Buffer
		gl := NewGormLogger(newBufferLogger(&buf), gormlogger.Error, WithRecordNotFound(true))
		gl.Trace(ctx, time.Now(), query, gormlogger.ErrRecordNotFound)
		assert.Contains(t, buf.String(), "record not found")
	})

	t.Run("slow query warns", func(t *testing.T) {
		var buf bytes.Buffer
		gl := NewGormLogger(newBufferLogger(&buf), gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))
		gl.Trace(ctx, time.Now().Add(-time.Second), query, nil)
		assert.Contains(t, buf.String(), "Slow query")
		assert.Contains(t, buf.String(), `"threshold":`)
		assert.Contains(t, buf.String(), `"rows":3`)
	})

	t.Run("fast query below info is skipped", func(t *testing.T) {
		var buf bytes.Buffer
		gl := NewGormLogger(newBufferLogger(&buf), gormlogger.Warn)
		gl.Trace(ctx, time.Now(), query, nil)
		assert.Empty(t, buf.String())
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		var buf bytes.Buffer
		gl := NewGormLogger(newBufferLogger(&buf), gormlogger.Info).LogMode(gormlogger.Silent)
		gl.Trace(ctx, time.Now(), query, errors.New("x"))
		assert.Empty(t, buf.String())
	})
}

func TestGormLogger_TruncatesSQL(t *testing.T) {
	long := "INSERT INTO imported_orders VALUES ('" + strings.Repeat("a", 1000) + "')"
	query := func() (string, int64) { return long, 1 }

	var buf bytes.Buffer
	NewGormLogger(newBufferLogger(&buf), gormlogger.Info).Trace(context.Background(), time.Now(), query, nil)
	assert.NotContains(t, buf.String(), strings.Repeat("a", 500))

	buf.Reset()
	NewGormLogger(newBufferLogger(&buf), gormlogger.Info, WithFullSQL(true)).Trace(context.Background(), time.Now(), query, nil)
	assert.Contains(t, buf.String(), strings.Repeat("a", 1000))
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("other"))
}
