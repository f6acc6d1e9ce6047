package reading

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	// timeLayout is fixed width so text comparison orders by time.
	timeLayout = "2006-01-02T15:04:05.000Z"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db      *sql.DB
	history bool
}

// NewSQLiteRepository creates a repository on an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection
//   - history: Append every saved reading to reading_history
//
// Returns:
//   - *SQLiteRepository: Repository ready for use
func NewSQLiteRepository(db *sql.DB, history bool) *SQLiteRepository {
	return &SQLiteRepository{db: db, history: history}
}

// Save upserts the latest reading and optionally records it in the history.
func (r *SQLiteRepository) Save(ctx context.Context, rd Reading) error {
	if err := rd.Validate(); err != nil {
		return err
	}
	if rd.Data == nil {
		rd.Data = map[string]any{}
	}

	data, err := json.Marshal(rd.Data)
	if err != nil {
		return fmt.Errorf("marshalling reading data: %w", err)
	}
	receivedAt := formatTime(rd.ReceivedAt)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO readings (address, kind, rssi, data, received_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (address, kind) DO UPDATE SET
			rssi = excluded.rssi,
			data = excluded.data,
			received_at = excluded.received_at`,
		rd.Address, rd.Kind, rd.RSSI, string(data), receivedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting reading: %w", err)
	}

	if r.history {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reading_history (address, kind, rssi, data, received_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rd.Address, rd.Kind, rd.RSSI, string(data), receivedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting reading history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reading: %w", err)
	}
	return nil
}

// Latest returns the latest reading of every kind seen for address.
func (r *SQLiteRepository) Latest(ctx context.Context, address string) ([]Reading, error) {
	readings, err := r.query(ctx,
		`SELECT address, kind, rssi, data, received_at
		 FROM readings
		 WHERE address = ?
		 ORDER BY kind`,
		address,
	)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, ErrNotFound
	}
	return readings, nil
}

// List returns the latest readings of all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Reading, error) {
	return r.query(ctx,
		`SELECT address, kind, rssi, data, received_at
		 FROM readings
		 ORDER BY address, kind`,
	)
}

// History returns recent readings for address, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - address: Device address
//   - limit: Maximum entries to return (default 50, max 500)
func (r *SQLiteRepository) History(ctx context.Context, address string, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	return r.query(ctx,
		`SELECT address, kind, rssi, data, received_at
		 FROM reading_history
		 WHERE address = ?
		 ORDER BY received_at DESC, id DESC
		 LIMIT ?`,
		address, limit,
	)
}

// Prune deletes history rows older than olderThan.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM reading_history WHERE received_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting reading history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	readings := make([]Reading, 0)
	for rows.Next() {
		var rd Reading
		var data, receivedAt string

		if err := rows.Scan(&rd.Address, &rd.Kind, &rd.RSSI, &data, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rd.Data); err != nil {
			return nil, fmt.Errorf("unmarshalling reading data: %w", err)
		}
		rd.ReceivedAt, err = time.Parse(timeLayout, receivedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing received_at: %w", err)
		}
		readings = append(readings, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}
