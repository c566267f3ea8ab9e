package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms/shopsync/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDB opens gorm with the postgres dialect on a sqlmock connection
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)
	return db, mock, conn
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, conn := newMockDB(t)
	d := &Database{DB: db, pool: conn}
	ctx := context.Background()

	mock.ExpectPing()
	assert.NoError(t, d.Ping(ctx))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.ErrorIs(t, d.Ping(ctx), sql.ErrConnDone)

	mock.ExpectClose()
	assert.NoError(t, d.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Open(ctx, &config.DatabaseConfig{
		Host:         "127.0.0.1",
		Port:         1,
		User:         "shopsync",
		DBName:       "shopsync",
		SSLMode:      "disable",
		MaxOpenConns: 1,
	})
	assert.ErrorContains(t, err, "ping database")
}
