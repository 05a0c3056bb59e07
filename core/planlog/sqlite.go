package planlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS plan_runs (
        id TEXT PRIMARY KEY,
        ts INTEGER NOT NULL,
        status TEXT NOT NULL,
        objective REAL,
        record TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS plan_runs_ts ON plan_runs (ts)`,
}

// SQLiteStore keeps records in a SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plan_runs (id, ts, status, objective, record) VALUES (?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Timestamp.UnixNano(), rec.Status.String(), rec.Objective, string(b))
	return err
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT record, ts FROM plan_runs WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Status != nil {
		query += ` AND status = ?`
		args = append(args, q.Status.String())
	}
	if q.Limit > 0 {
		query = `SELECT * FROM (` + query + ` ORDER BY ts DESC LIMIT ?)`
		args = append(args, q.Limit)
	}
	query += ` ORDER BY ts`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var (
			data string
			ts   int64
		)
		if err := rows.Scan(&data, &ts); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
