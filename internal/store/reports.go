package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultBackupCapacity bounds the queue when no capacity is configured.
const DefaultBackupCapacity = 100

// timeLayout is the canonical timestamp encoding for report rows.
const timeLayout = time.RFC3339Nano

// ReportRecord is one write-ahead row in the backup queue. A record is
// created on every report attempt regardless of sink outcome; Sent flips to
// true only after a confirmed delivery and the row is removed only by
// capacity pruning or explicit cleanup.
type ReportRecord struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Code      string     `json:"code"`
	Severity  string     `json:"severity"`
	Payload   string     `json:"payload"`
	Sent      bool       `json:"sent"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// InsertReport writes a record with sent=0 and prunes the oldest rows beyond
// capacity. capacity <= 0 selects DefaultBackupCapacity.
func InsertReport(db *sql.DB, rec ReportRecord, capacity int) error {
	if rec.ID == "" {
		return errors.New("report record id is required")
	}
	if capacity <= 0 {
		capacity = DefaultBackupCapacity
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return RetryWithBackoff(func() error {
		ctx := context.Background()
		_, err := db.ExecContext(ctx, `
			INSERT INTO reports (id, created_at, code, severity, payload, sent)
			VALUES (?, ?, ?, ?, ?, 0)
		`, rec.ID, createdAt.Format(timeLayout), rec.Code, rec.Severity, rec.Payload)
		if err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}

		// Oldest-first eviction keeps the queue bounded.
		_, err = db.ExecContext(ctx, `
			DELETE FROM reports WHERE id NOT IN (
				SELECT id FROM reports ORDER BY created_at DESC, rowid DESC LIMIT ?
			)
		`, capacity)
		if err != nil {
			return fmt.Errorf("failed to prune reports: %w", err)
		}
		return nil
	})
}

// MarkReportSent flips a record to sent. The conditional update makes the
// flip exactly-once observable: only the caller whose update affected a row
// gets flipped=true, so concurrent syncs cannot double-count a record.
func MarkReportSent(db *sql.DB, id string) (flipped bool, err error) {
	err = RetryWithBackoff(func() error {
		res, execErr := db.ExecContext(context.Background(), `
			UPDATE reports SET sent = 1, sent_at = ? WHERE id = ? AND sent = 0
		`, time.Now().UTC().Format(timeLayout), id)
		if execErr != nil {
			return fmt.Errorf("failed to mark report sent: %w", execErr)
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("failed to check rows affected: %w", raErr)
		}
		flipped = n == 1
		return nil
	})
	return flipped, err
}

// UnsentReports returns pending records, oldest first, up to limit
// (limit <= 0 means no bound).
func UnsentReports(db *sql.DB, limit int) ([]ReportRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return queryReports(db, `
		SELECT id, created_at, code, severity, payload, sent, sent_at
		FROM reports WHERE sent = 0
		ORDER BY created_at ASC, rowid ASC LIMIT ?
	`, limit)
}

// ListReports returns the newest records, sent or not, up to limit.
func ListReports(db *sql.DB, limit int) ([]ReportRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return queryReports(db, `
		SELECT id, created_at, code, severity, payload, sent, sent_at
		FROM reports
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
}

func queryReports(db *sql.DB, query string, args ...any) ([]ReportRecord, error) {
	rows, err := db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		var createdAt string
		var sent int
		var sentAt sql.NullString
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Code, &rec.Severity, &rec.Payload, &sent, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		rec.Sent = sent == 1
		if sentAt.Valid {
			if t, parseErr := time.Parse(timeLayout, sentAt.String); parseErr == nil {
				rec.SentAt = &t
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate report rows: %w", err)
	}
	return out, nil
}

// PurgeSentReports deletes already-delivered rows and returns how many.
func PurgeSentReports(db *sql.DB) (int64, error) {
	var purged int64
	err := RetryWithBackoff(func() error {
		res, execErr := db.ExecContext(context.Background(), `DELETE FROM reports WHERE sent = 1`)
		if execErr != nil {
			return fmt.Errorf("failed to purge sent reports: %w", execErr)
		}
		purged, _ = res.RowsAffected()
		return nil
	})
	return purged, err
}

// ReportCounts returns total and sent row counts.
func ReportCounts(db *sql.DB) (total, sent int64, err error) {
	err = db.QueryRowContext(context.Background(), `
		SELECT COUNT(*), COALESCE(SUM(sent), 0) FROM reports
	`).Scan(&total, &sent)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return total, sent, nil
}
