// Package postgres stores collector data in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/csm-transport/internal/utils"
	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS csm_feedbacks (
	id BIGSERIAL PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL,
	wrapper_version TEXT NOT NULL,
	profile_id INTEGER NOT NULL,
	impression_id TEXT NOT NULL,
	zone_id INTEGER,
	cached_bid_used BOOLEAN NOT NULL,
	request_group_id TEXT,
	is_timeout BOOLEAN NOT NULL,
	cdb_call_start_elapsed BIGINT NOT NULL,
	cdb_call_end_elapsed BIGINT,
	elapsed BIGINT
);
CREATE TABLE IF NOT EXISTS remote_logs (
	id BIGSERIAL PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL,
	version TEXT NOT NULL,
	bundle_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	profile_id INTEGER NOT NULL,
	exception TEXT NOT NULL,
	log_id TEXT NOT NULL,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	logged_at BIGINT NOT NULL
);`

const (
	insertFeedback = `INSERT INTO csm_feedbacks(received_at, wrapper_version, profile_id, impression_id, zone_id,
	cached_bid_used, request_group_id, is_timeout, cdb_call_start_elapsed, cdb_call_end_elapsed, elapsed)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	insertLog = `INSERT INTO remote_logs(received_at, version, bundle_id, session_id, profile_id, exception,
	log_id, level, message, logged_at)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
)

type PostgresStorage struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresStorage connects to DatabaseDsn and creates the tables.
func NewPostgresStorage(ctx context.Context, DatabaseDsn string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, DatabaseDsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	err = utils.WithRetry(ctx, func() error {
		_, err := db.Exec(ctx, schema)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &PostgresStorage{db: db, now: time.Now}, nil
}

func (store *PostgresStorage) SaveMetrics(ctx context.Context, req model.MetricRequest) error {
	return store.sendBatch(ctx, feedbackBatch(storage.FeedbackRows(req, store.now())))
}

func (store *PostgresStorage) SaveLogs(ctx context.Context, logs []model.RemoteLogRecords) error {
	return store.sendBatch(ctx, logBatch(storage.LogRows(logs, store.now())))
}

func feedbackBatch(rows []storage.FeedbackRow) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertFeedback, r.ReceivedAt, r.WrapperVersion, r.ProfileID, r.ImpressionID, r.ZoneID,
			r.CachedBidUsed, r.RequestGroupID, r.IsTimeout, r.CdbCallStartElapsed, r.CdbCallEndElapsed, r.Elapsed)
	}
	return batch
}

func logBatch(rows []storage.LogRow) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertLog, r.ReceivedAt, r.Version, r.BundleID, r.SessionID, r.ProfileID, r.ExceptionType,
			r.LogID, r.Level, r.Message, r.LoggedAt)
	}
	return batch
}

// sendBatch runs batch in one transaction, retrying transient failures.
func (store *PostgresStorage) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	return utils.WithRetry(ctx, func() error {
		return pgx.BeginFunc(ctx, store.db, func(tx pgx.Tx) error {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert batch: %w", err)
			}
			return nil
		})
	})
}

func (store *PostgresStorage) Stats(ctx context.Context) (storage.Stats, error) {
	var st storage.Stats
	err := store.db.QueryRow(ctx,
		"SELECT (SELECT COUNT(*) FROM csm_feedbacks), (SELECT COUNT(*) FROM remote_logs)",
	).Scan(&st.Feedbacks, &st.LogMessages)
	if err != nil {
		return storage.Stats{}, fmt.Errorf("count rows: %w", err)
	}
	return st, nil
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (store *PostgresStorage) Close() error {
	store.db.Close()
	return nil
}
