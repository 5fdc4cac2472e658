package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const updateStatusSQL = "UPDATE orders SET status = $1 WHERE id = $2"

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)
	return Wrap(conn), mock
}

func updateStatus(tx *gorm.DB) error {
	return tx.Exec("UPDATE orders SET status = ? WHERE id = ?", "confirmed", 7).Error
}

func TestWithTx_BeginFailureSkipsCallback(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		called = true
		return nil
	})

	assert.EqualError(t, err, "connection refused")
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_StatementFailureRollsBack(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(updateStatusSQL)).
		WithArgs("confirmed", 7).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := client.WithTx(context.Background(), updateStatus)

	assert.EqualError(t, err, "deadlock detected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitFailureSurfaces(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(updateStatusSQL)).
		WithArgs("confirmed", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := client.WithTx(context.Background(), updateStatus)

	assert.EqualError(t, err, "serialization failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing_ReportsUnreachableDatabase(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectPing().WillReturnError(errors.New("server closed the connection"))

	err := client.Ping(context.Background())

	assert.EqualError(t, err, "server closed the connection")
	assert.NoError(t, mock.ExpectationsWereMet())
}
