package audit

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/query"
)

func TestNewDBLogger(t *testing.T) {
	t.Run("requires a database", func(t *testing.T) {
		_, err := NewDBLogger(context.Background(), nil, query.SQLite)
		assert.Error(t, err)
	})

	t.Run("creates table and indexes", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS audit_events")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_audit_events_username")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		l, err := NewDBLogger(context.Background(), db, query.Postgres)
		require.NoError(t, err)
		assert.Contains(t, l.insert, "$12")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("table creation fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE").WillReturnError(sql.ErrConnDone)

		_, err = NewDBLogger(context.Background(), db, query.Postgres)
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})
}

func TestDBLogger_Log(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX").WillReturnResult(sqlmock.NewResult(0, 0))

	l, err := NewDBLogger(context.Background(), db, query.Postgres)
	require.NoError(t, err)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).
		WithArgs(ts, "data.create", "success", "dunglas", sql.NullString{}, "POST", "/dummies",
			201, int64(3), sql.NullString{}, sql.NullString{}, "req-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = l.Log(context.Background(), &Event{
		Timestamp: ts, Action: ActionCreate, Status: StatusSuccess, Username: "dunglas",
		Method: "POST", Path: "/dummies", StatusCode: 201, DurationMS: 3, RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	l, err := NewDBLogger(ctx, db, query.SQLite)
	require.NoError(t, err)

	// a second logger on the same database keeps the existing table
	_, err = NewDBLogger(ctx, db, query.SQLite)
	require.NoError(t, err)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, e := range []*Event{
		{Timestamp: ts, Action: ActionCreate, Status: StatusSuccess, Username: "dunglas", Route: "/dummies",
			Method: "POST", Path: "/dummies", StatusCode: 201, IPAddress: "10.0.0.1"},
		{Timestamp: ts.Add(time.Second), Action: ActionDenied, Status: StatusDenied, Route: "/secured_dummies",
			Method: "POST", Path: "/secured_dummies", StatusCode: 401},
	} {
		require.NoError(t, l.Log(ctx, e))
	}

	events, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionDenied, events[0].Action)
	assert.Empty(t, events[0].Username)
	assert.Equal(t, "dunglas", events[1].Username)
	assert.Equal(t, "10.0.0.1", events[1].IPAddress)
	assert.True(t, ts.Equal(events[1].Timestamp))

	events, err = l.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 401, events[0].StatusCode)

	assert.NoError(t, l.Close())
}
