package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sdmedia/clubbot/internal/domain"
	"github.com/sdmedia/clubbot/internal/shared"
	"github.com/sdmedia/clubbot/internal/subscription"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS members (
		member_id INTEGER PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		subscription_end TEXT,
		pending_intent TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_members_sub_end ON members(subscription_end) WHERE subscription_end IS NOT NULL;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetMember retrieves a member record; an unknown member yields the zero
// record rather than an error.
func (s *SQLiteStore) GetMember(ctx context.Context, memberID int64) (domain.MemberRecord, error) {
	query := `
		SELECT member_id, username, subscription_end, pending_intent, created_at, updated_at
		FROM members WHERE member_id = ?`

	row := s.db.QueryRowContext(ctx, query, memberID)

	record, err := scanMember(row)
	if err == sql.ErrNoRows {
		return domain.MemberRecord{MemberID: memberID}, nil
	}
	if err != nil {
		return domain.MemberRecord{}, fmt.Errorf("scan member row: %w", err)
	}
	return record, nil
}

// UpdateMember applies a field-level merge of patch inside a single write
// transaction and returns the merged record. Unset patch fields keep the
// persisted value; the row is created with defaults if it does not exist.
func (s *SQLiteStore) UpdateMember(ctx context.Context, memberID int64, patch domain.MemberPatch) (domain.MemberRecord, error) {
	query := `
	INSERT INTO members (member_id, username, subscription_end, pending_intent, created_at, updated_at)
	VALUES (?1, COALESCE(?2, ''), ?3, COALESCE(?4, ''), ?5, ?5)
	ON CONFLICT(member_id) DO UPDATE SET
		username = COALESCE(?2, members.username),
		subscription_end = COALESCE(?3, members.subscription_end),
		pending_intent = COALESCE(?4, members.pending_intent),
		updated_at = ?5`

	var subEnd interface{}
	if patch.SubscriptionEnd != nil {
		subEnd = subscription.FormatDate(*patch.SubscriptionEnd)
	}
	var intent interface{}
	if patch.PendingIntent != nil {
		intent = string(*patch.PendingIntent)
	}
	var username interface{}
	if patch.Username != nil {
		username = *patch.Username
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.MemberRecord{}, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, query, memberID, username, subEnd, intent, time.Now().Unix()); err != nil {
		return domain.MemberRecord{}, fmt.Errorf("upsert member: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT member_id, username, subscription_end, pending_intent, created_at, updated_at
		FROM members WHERE member_id = ?`, memberID)
	record, err := scanMember(row)
	if err != nil {
		return domain.MemberRecord{}, fmt.Errorf("read back member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.MemberRecord{}, fmt.Errorf("commit member update: %w", err)
	}
	return record, nil
}

// ConsumeIntent clears the pending intent only when it matches expected,
// reporting whether this call won the clear. The conditional UPDATE with a
// rows-affected check is what makes consumption a single atomic step.
func (s *SQLiteStore) ConsumeIntent(ctx context.Context, memberID int64, expected domain.PendingIntent) (bool, error) {
	if expected == domain.IntentNone {
		return false, nil
	}

	query := `UPDATE members SET pending_intent = '', updated_at = ? WHERE member_id = ? AND pending_intent = ?`
	result, err := s.execWithRetry(ctx, query, time.Now().Unix(), memberID, string(expected))
	if err != nil {
		return false, fmt.Errorf("consume intent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows == 1, nil
}

// GrantSubscription sets subscription_end unless a grant live on `today`
// already exists. Refused grants affect zero rows; the database's write
// serialization resolves concurrent approvals so only one can succeed.
func (s *SQLiteStore) GrantSubscription(ctx context.Context, memberID int64, end, today time.Time) (bool, error) {
	query := `
	INSERT INTO members (member_id, username, subscription_end, pending_intent, created_at, updated_at)
	VALUES (?1, '', ?2, '', ?4, ?4)
	ON CONFLICT(member_id) DO UPDATE SET
		subscription_end = ?2,
		updated_at = ?4
	WHERE members.subscription_end IS NULL OR members.subscription_end < ?3`

	result, err := s.execWithRetry(ctx, query,
		memberID,
		subscription.FormatDate(end),
		subscription.FormatDate(today),
		time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("grant subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Debug("GrantSubscription refused, live grant exists", "member_id", memberID)
		return false, nil
	}
	return true, nil
}

// Snapshot enumerates all member records for statistics.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]domain.MemberRecord, error) {
	query := `
		SELECT member_id, username, subscription_end, pending_intent, created_at, updated_at
		FROM members ORDER BY member_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close snapshot rows", "error", closeErr)
		}
	}()

	var records []domain.MemberRecord
	for rows.Next() {
		record, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// execWithRetry runs a write statement with exponential backoff to handle
// SQLITE_BUSY errors from competing writers.
func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var result sql.Result
	var err error
	for i := 0; i < maxRetries; i++ {
		result, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return result, nil
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("write failed with SQLITE_BUSY, retrying", "attempt", i+1, "delay", delay)
			time.Sleep(delay)
			continue
		}
		return nil, err
	}
	return nil, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(row rowScanner) (domain.MemberRecord, error) {
	var record domain.MemberRecord
	var subEnd sql.NullString
	var intent string
	var createdAt, updatedAt int64

	err := row.Scan(&record.MemberID, &record.Username, &subEnd, &intent, &createdAt, &updatedAt)
	if err != nil {
		return domain.MemberRecord{}, err
	}

	if subEnd.Valid {
		end, parseErr := time.Parse(subscription.DateLayout, subEnd.String)
		if parseErr != nil {
			return domain.MemberRecord{}, fmt.Errorf("parse stored end date %q: %w", subEnd.String, parseErr)
		}
		record.SubscriptionEnd = &end
	}
	record.PendingIntent = domain.PendingIntent(intent)
	record.CreatedAt = time.Unix(createdAt, 0)
	record.UpdatedAt = time.Unix(updatedAt, 0)
	return record, nil
}
