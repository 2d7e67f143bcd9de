// Package state implements the daemon's durable State Store (spec.md §4.1):
// account cursors, the media dedupe registry, and the job lock, all backed
// by a single SQLite file opened in WAL mode.
//
// Grounded on the teacher's internal/repository/repo_core.go constructor
// shape and internal/repository/postgres_leasing.go's insert-on-conflict
// lease acquisition, retargeted from a pooled Postgres connection to a
// single embedded modernc.org/sqlite database with an explicit
// "BEGIN IMMEDIATE" transaction standing in for Postgres's row-level locking.
package state

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the State Store. All methods are safe for concurrent use from a
// single process; cross-process exclusion is provided by acquire_lock.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite file at path and brings the
// schema up to date. WAL journaling and foreign-key enforcement are set
// unconditionally on every connection, matching the teacher's practice of
// fixing session-wide parameters in the constructor.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY storms under WAL and
	// keeps acquire_lock's BEGIN IMMEDIATE semantics simple to reason about.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Init idempotently brings the schema up to date. Exposed so the Sync
// Engine can call it at the start of every run per spec.md §4.5 step 2,
// even though Open already calls it once at construction time.
func (s *Store) Init(ctx context.Context) error {
	return s.init(ctx)
}

// init idempotently brings the schema up, adding the rate_limited_until
// column to an older schema that lacks it (spec.md §4.1).
func (s *Store) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS account_cursors (
			handle TEXT PRIMARY KEY,
			latest_seen_post_id TEXT,
			backfill_cursor TEXT,
			backfill_done INTEGER NOT NULL DEFAULT 0,
			rate_limited_until INTEGER,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS media_records (
			media_key TEXT PRIMARY KEY,
			post_id TEXT NOT NULL,
			account_handle TEXT NOT NULL,
			media_url TEXT NOT NULL,
			media_type TEXT NOT NULL,
			uploaded_at INTEGER NOT NULL,
			sink_message_ids TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS job_locks (
			job_name TEXT PRIMARY KEY,
			locked_until INTEGER NOT NULL,
			holder_id TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return s.ensureRateLimitedUntilColumn(ctx)
}

// ensureRateLimitedUntilColumn adds the rate_limited_until column when an
// older, pre-cooldown schema is found on disk. CREATE TABLE IF NOT EXISTS
// above never retrofits an existing table, so this probes the column list
// explicitly, mirroring the teacher's ensureScriptTemplatesSchema pattern.
func (s *Store) ensureRateLimitedUntilColumn(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(account_cursors)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	hasColumn := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if name == "rate_limited_until" {
			hasColumn = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if hasColumn {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `ALTER TABLE account_cursors ADD COLUMN rate_limited_until INTEGER`)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAccount returns the stored cursor for handle, or a zero-valued cursor
// if none has been persisted yet (spec.md §4.1).
func (s *Store) GetAccount(ctx context.Context, handle string) (AccountCursor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT latest_seen_post_id, backfill_cursor, backfill_done, rate_limited_until, updated_at
		FROM account_cursors WHERE handle = ?`, handle)

	var latestSeenPostID, backfillCursor sql.NullString
	var backfillDone int
	var rateLimitedUntil, updatedAt sql.NullInt64

	err := row.Scan(&latestSeenPostID, &backfillCursor, &backfillDone, &rateLimitedUntil, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AccountCursor{Handle: handle}, nil
	}
	if err != nil {
		return AccountCursor{}, fmt.Errorf("get account %s: %w", handle, err)
	}

	cursor := AccountCursor{
		Handle:           handle,
		LatestSeenPostID: latestSeenPostID.String,
		BackfillCursor:   backfillCursor.String,
		BackfillDone:     backfillDone != 0,
	}
	if rateLimitedUntil.Valid {
		cursor.RateLimitedUntil = time.Unix(rateLimitedUntil.Int64, 0).UTC()
	}
	if updatedAt.Valid {
		cursor.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
	}
	return cursor, nil
}

// PutAccount upserts cursor by handle. UpdatedAt is defaulted to now if
// unset (spec.md §4.1).
func (s *Store) PutAccount(ctx context.Context, cursor AccountCursor) error {
	if cursor.UpdatedAt.IsZero() {
		cursor.UpdatedAt = time.Now().UTC()
	}

	var rateLimitedUntil sql.NullInt64
	if !cursor.RateLimitedUntil.IsZero() {
		rateLimitedUntil = sql.NullInt64{Int64: cursor.RateLimitedUntil.Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_cursors (handle, latest_seen_post_id, backfill_cursor, backfill_done, rate_limited_until, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET
			latest_seen_post_id = excluded.latest_seen_post_id,
			backfill_cursor = excluded.backfill_cursor,
			backfill_done = excluded.backfill_done,
			rate_limited_until = excluded.rate_limited_until,
			updated_at = excluded.updated_at`,
		cursor.Handle, nullString(cursor.LatestSeenPostID), nullString(cursor.BackfillCursor),
		boolToInt(cursor.BackfillDone), rateLimitedUntil, cursor.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("put account %s: %w", cursor.Handle, err)
	}
	return nil
}

// IsMediaUploaded reports whether mediaKey is already present in the
// registry (spec.md §4.1; the authoritative dedupe signal per invariant 1).
func (s *Store) IsMediaUploaded(ctx context.Context, mediaKey string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM media_records WHERE media_key = ?`, mediaKey).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is media uploaded %s: %w", mediaKey, err)
	}
	return true, nil
}

// MarkMedia inserts (or replaces) a media record by media_key (spec.md §4.1).
func (s *Store) MarkMedia(ctx context.Context, rec MediaRecord) error {
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}
	ids, err := json.Marshal(rec.SinkMessageIDs)
	if err != nil {
		return fmt.Errorf("marshal sink message ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO media_records (media_key, post_id, account_handle, media_url, media_type, uploaded_at, sink_message_ids, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(media_key) DO UPDATE SET
			post_id = excluded.post_id,
			account_handle = excluded.account_handle,
			media_url = excluded.media_url,
			media_type = excluded.media_type,
			uploaded_at = excluded.uploaded_at,
			sink_message_ids = excluded.sink_message_ids,
			status = excluded.status`,
		rec.MediaKey, rec.PostID, rec.AccountHandle, rec.MediaURL, string(rec.MediaType),
		rec.UploadedAt.Unix(), string(ids), string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("mark media %s: %w", rec.MediaKey, err)
	}
	return nil
}

// AcquireLock atomically observes the current lock row for jobName and, if
// absent or expired, claims it for holderID with the given ttl. Runs inside
// a BEGIN IMMEDIATE transaction so two callers racing against the same
// SQLite file cannot both succeed (spec.md §4.1, invariant 4).
func (s *Store) AcquireLock(ctx context.Context, jobName, holderID string, ttl time.Duration) (bool, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock conn: %w", err)
	}
	defer conn.Close()

	// BEGIN IMMEDIATE grabs SQLite's RESERVED lock up front, so the
	// check-then-set below is atomic against any other connection (in this
	// process or another) doing the same thing against a shared db file.
	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return false, fmt.Errorf("begin immediate: %w", err)
	}
	rollback := func() {
		_, _ = conn.ExecContext(ctx, `ROLLBACK`)
	}

	// locked_until is stored in Unix milliseconds so sub-second TTLs are
	// honoured rather than truncated to the second.
	now := time.Now().UTC()
	var lockedUntil int64
	err = conn.QueryRowContext(ctx, `SELECT locked_until FROM job_locks WHERE job_name = ?`, jobName).Scan(&lockedUntil)
	held := err == nil && time.UnixMilli(lockedUntil).After(now)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		rollback()
		return false, fmt.Errorf("read lock %s: %w", jobName, err)
	}
	if held {
		rollback()
		return false, nil
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO job_locks (job_name, locked_until, holder_id) VALUES (?, ?, ?)
		ON CONFLICT(job_name) DO UPDATE SET locked_until = excluded.locked_until, holder_id = excluded.holder_id`,
		jobName, now.Add(ttl).UnixMilli(), holderID,
	)
	if err != nil {
		rollback()
		return false, fmt.Errorf("write lock %s: %w", jobName, err)
	}
	if _, err := conn.ExecContext(ctx, `COMMIT`); err != nil {
		return false, fmt.Errorf("commit lock tx: %w", err)
	}
	return true, nil
}

// ReleaseLock deletes jobName's lock row iff holderID still holds it. A
// mismatched holder is a no-op, never an error (spec.md §4.1).
func (s *Store) ReleaseLock(ctx context.Context, jobName, holderID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM job_locks WHERE job_name = ? AND holder_id = ?`, jobName, holderID)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", jobName, err)
	}
	return nil
}

// ComputeMediaKey derives the content-addressed dedupe identifier for a
// (post_id, media_url) pair, per spec.md §3's GLOSSARY definition.
func ComputeMediaKey(postID, mediaURL string) string {
	sum := sha256.Sum256([]byte(postID + "::" + mediaURL))
	return hex.EncodeToString(sum[:])
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
