package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/retailmarket/core/model"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS tariff_audit (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT NOT NULL,
        tariff_id INTEGER NOT NULL,
        broker TEXT,
        command TEXT NOT NULL,
        outcome TEXT NOT NULL,
        ts INTEGER NOT NULL,
        timeslot INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS tariff_audit_tariff ON tariff_audit (tariff_id);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tariff_audit (id, tariff_id, broker, command, outcome, ts, timeslot) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TariffID, rec.Broker, string(rec.Command), string(rec.Outcome), rec.Timestamp.UnixNano(), rec.Timeslot)
	return err
}

// Query returns records matching q in insertion order.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT id, tariff_id, broker, command, outcome, ts, timeslot FROM tariff_audit WHERE 1=1`
	if q.TariffID != 0 {
		query += ` AND tariff_id = ?`
		args = append(args, q.TariffID)
	}
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	query += ` ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var (
			r       Record
			broker  sql.NullString
			command string
			outcome string
			ts      int64
		)
		if err := rows.Scan(&r.ID, &r.TariffID, &broker, &command, &outcome, &ts, &r.Timeslot); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		r.Broker = broker.String
		r.Command = model.CommandType(command)
		r.Outcome = Outcome(outcome)
		r.Timestamp = time.Unix(0, ts).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
