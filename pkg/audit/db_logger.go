package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/gantry/pkg/query"
)

// Table holds audit events in the API database
const Table = "audit_events"

var eventColumns = []string{
	"timestamp", "action", "status", "username", "route", "method", "path",
	"status_code", "duration_ms", "ip_address", "user_agent", "request_id",
}

// DBLogger stores events in the audit_events table
type DBLogger struct {
	db      *sql.DB
	dialect query.Dialect
	insert  string
}

// NewDBLogger creates the audit table when missing
func NewDBLogger(ctx context.Context, db *sql.DB, dialect query.Dialect) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	l := &DBLogger{db: db, dialect: dialect}
	placeholders := make([]string, len(eventColumns))
	for i := range eventColumns {
		placeholders[i] = dialect.Placeholder(i + 1)
	}
	l.insert = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		Table, strings.Join(eventColumns, ", "), strings.Join(placeholders, ", "))

	if err := l.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure %s table: %w", Table, err)
	}
	return l, nil
}

func (l *DBLogger) ensureTable(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	timestamp TIMESTAMP NOT NULL,
	action VARCHAR(50) NOT NULL,
	status VARCHAR(20) NOT NULL,
	username VARCHAR(255),
	route VARCHAR(255),
	method VARCHAR(10) NOT NULL,
	path TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	ip_address VARCHAR(45),
	user_agent TEXT,
	request_id VARCHAR(100)
)`, Table, l.dialect.AutoIncrementPK()),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s (timestamp)", Table, Table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_username ON %s (username)", Table, Table),
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Log implements Logger
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	_, err := l.db.ExecContext(ctx, l.insert,
		event.Timestamp.UTC(), string(event.Action), string(event.Status),
		nullString(event.Username), nullString(event.Route), event.Method, event.Path,
		event.StatusCode, event.DurationMS,
		nullString(event.IPAddress), nullString(event.UserAgent), nullString(event.RequestID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Recent returns the latest events, newest first
func (l *DBLogger) Recent(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	stmt := fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id DESC LIMIT %s",
		strings.Join(eventColumns, ", "), Table, l.dialect.Placeholder(1))

	rows, err := l.db.QueryContext(ctx, stmt, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e                                         Event
			action, status                            string
			username, route, ip, userAgent, requestID sql.NullString
			timestamp                                 time.Time
		)
		if err := rows.Scan(&e.ID, &timestamp, &action, &status, &username, &route, &e.Method, &e.Path,
			&e.StatusCode, &e.DurationMS, &ip, &userAgent, &requestID); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Timestamp = timestamp.UTC()
		e.Action = Action(action)
		e.Status = Status(status)
		e.Username = username.String
		e.Route = route.String
		e.IPAddress = ip.String
		e.UserAgent = userAgent.String
		e.RequestID = requestID.String
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Close implements Logger. The database is owned by the caller.
func (l *DBLogger) Close() error {
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
