// Package sqlite stores collector data in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS csm_feedbacks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	received_at INTEGER NOT NULL,
	wrapper_version TEXT NOT NULL,
	profile_id INTEGER NOT NULL,
	impression_id TEXT NOT NULL,
	zone_id INTEGER,
	cached_bid_used INTEGER NOT NULL,
	request_group_id TEXT,
	is_timeout INTEGER NOT NULL,
	cdb_call_start_elapsed INTEGER NOT NULL,
	cdb_call_end_elapsed INTEGER,
	elapsed INTEGER
);
CREATE TABLE IF NOT EXISTS remote_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	received_at INTEGER NOT NULL,
	version TEXT NOT NULL,
	bundle_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	profile_id INTEGER NOT NULL,
	exception TEXT NOT NULL,
	log_id TEXT NOT NULL,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	logged_at INTEGER NOT NULL
);`

const (
	insertFeedback = `INSERT INTO csm_feedbacks(received_at, wrapper_version, profile_id, impression_id, zone_id,
	cached_bid_used, request_group_id, is_timeout, cdb_call_start_elapsed, cdb_call_end_elapsed, elapsed)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertLog = `INSERT INTO remote_logs(received_at, version, bundle_id, session_id, profile_id, exception,
	log_id, level, message, logged_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// SQLiteStore is a collector storage over a SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens the database at path and creates the tables.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if _, err = db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) SaveMetrics(ctx context.Context, req model.MetricRequest) error {
	rows := storage.FeedbackRows(req, s.now())
	return s.insert(ctx, insertFeedback, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.ExecContext(ctx, r.ReceivedAt.UnixMilli(), r.WrapperVersion, r.ProfileID, r.ImpressionID,
			r.ZoneID, r.CachedBidUsed, r.RequestGroupID, r.IsTimeout, r.CdbCallStartElapsed, r.CdbCallEndElapsed, r.Elapsed)
		return err
	})
}

func (s *SQLiteStore) SaveLogs(ctx context.Context, logs []model.RemoteLogRecords) error {
	rows := storage.LogRows(logs, s.now())
	return s.insert(ctx, insertLog, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.ExecContext(ctx, r.ReceivedAt.UnixMilli(), r.Version, r.BundleID, r.SessionID, r.ProfileID,
			r.ExceptionType, r.LogID, r.Level, r.Message, r.LoggedAt)
		return err
	})
}

// insert runs exec for n rows in one transaction.
func (s *SQLiteStore) insert(ctx context.Context, query string, n int, exec func(stmt *sql.Stmt, i int) error) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("error inserting row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (storage.Stats, error) {
	var st storage.Stats
	err := s.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM csm_feedbacks), (SELECT COUNT(*) FROM remote_logs)",
	).Scan(&st.Feedbacks, &st.LogMessages)
	if err != nil {
		return storage.Stats{}, fmt.Errorf("error counting rows: %w", err)
	}
	return st, nil
}

// ImpressionIDs returns the stored impression ids in insertion order.
func (s *SQLiteStore) ImpressionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT impression_id FROM csm_feedbacks ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
