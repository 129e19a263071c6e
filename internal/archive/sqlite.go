// Package archive keeps a local SQLite record of captured leads and send
// outcomes. Unlike the shared ledger it is private to one worker, so plain
// database transactions suffice; it exists for audit and for the read-only
// CLI verbs, never as a write basis for dispatch decisions.
package archive

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ParesquiMCSA/AutoWpp/internal/assert"
	"github.com/ParesquiMCSA/AutoWpp/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const maxArchiveRows = 100000

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens (creating if needed) the archive at dbPath and initializes the
// schema.
func NewDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("enabling WAL mode: %v; closing archive: %w", err, closeErr)
		}
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("executing schema: %v; closing archive: %w", err, closeErr)
		}
		return nil, fmt.Errorf("executing schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// InsertLead stores a completed lead. A repeat capture for the same phone
// overwrites the previous row; the external append service keeps the
// at-least-once history, this table keeps the latest.
func (db *DB) InsertLead(lead models.Lead, worker string) error {
	if err := assert.Check(lead.Phone != "", "lead phone must not be empty"); err != nil {
		return err
	}
	if err := assert.Check(lead.Document != "", "lead document must not be empty"); err != nil {
		return err
	}
	if err := assert.Check(lead.Email != "", "lead email must not be empty"); err != nil {
		return err
	}

	query := `
		INSERT INTO leads (phone, document, email, captured_at, worker)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			document = excluded.document,
			email = excluded.email,
			captured_at = excluded.captured_at,
			worker = excluded.worker
	`
	_, err := db.conn.Exec(query,
		lead.Phone, lead.Document, lead.Email,
		lead.CapturedAt.Format(time.RFC3339Nano), worker,
	)
	if err != nil {
		return fmt.Errorf("inserting lead: %w", err)
	}
	return nil
}

// RecordSend logs one delivery attempt outcome ("sent" or "failed").
func (db *DB) RecordSend(phone, worker, outcome string, at time.Time) error {
	if err := assert.Check(phone != "", "phone must not be empty"); err != nil {
		return err
	}
	if err := assert.Check(outcome == "sent" || outcome == "failed", "invalid outcome %q", outcome); err != nil {
		return err
	}

	res, err := db.conn.Exec(
		`INSERT INTO send_log (phone, worker, outcome, at) VALUES (?, ?, ?, ?)`,
		phone, worker, outcome, at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting send outcome: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil || rows != 1 {
		return fmt.Errorf("failed to insert send outcome: rows affected = %d", rows)
	}
	return nil
}

// ListLeads returns up to limit leads, most recent first.
func (db *DB) ListLeads(limit int) (leads []models.Lead, err error) {
	if err := assert.Check(limit > 0, "limit must be positive"); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(
		`SELECT phone, document, email, captured_at FROM leads ORDER BY captured_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing leads rows: %w", closeErr)
		}
	}()

	for i := 0; i < maxArchiveRows; i++ {
		if !rows.Next() {
			break
		}
		var lead models.Lead
		var capturedAt string
		if err := rows.Scan(&lead.Phone, &lead.Document, &lead.Email, &capturedAt); err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, capturedAt)
		if err == nil {
			lead.CapturedAt = t
		}
		leads = append(leads, lead)
	}

	if err := assert.Check(rows.Err() == nil, "leads rows error: %v", rows.Err()); err != nil {
		return nil, err
	}
	return leads, nil
}

// SendStats returns delivery attempt counts per outcome.
func (db *DB) SendStats() (sent, failed uint64, err error) {
	rows, err := db.conn.Query(`SELECT outcome, COUNT(*) FROM send_log GROUP BY outcome`)
	if err != nil {
		return 0, 0, fmt.Errorf("querying send stats: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing send stats rows: %w", closeErr)
		}
	}()

	for i := 0; i < 4; i++ {
		if !rows.Next() {
			break
		}
		var outcome string
		var count uint64
		if err := rows.Scan(&outcome, &count); err != nil {
			return 0, 0, fmt.Errorf("scanning send stats: %w", err)
		}
		switch outcome {
		case "sent":
			sent = count
		case "failed":
			failed = count
		}
	}

	if err := assert.Check(rows.Err() == nil, "send stats rows error: %v", rows.Err()); err != nil {
		return 0, 0, err
	}
	return sent, failed, nil
}
