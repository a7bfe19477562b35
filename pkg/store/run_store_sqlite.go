// Package store keeps a ledger of compile runs: the canonical bundle, its
// determinism record and the gate events, keyed by bundle hash.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/compiler"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/determinism"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no run matches.
var ErrNotFound = errors.New("run not found")

// Run is one stored compile run.
type Run struct {
	BundleHash    string
	RunID         string
	ProductID     string
	SpecHash      string
	ChecklistHash string
	EngineVersion string
	State         conform.ConversionState
	Grade         conform.Grade
	Valid         bool
	RefusalCode   string
	Timestamp     time.Time
	Bundle        []byte
}

// SQLiteRunStore stores runs in SQLite.
type SQLiteRunStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*SQLiteRunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteRunStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteRunStore wraps db and applies the schema.
func NewSQLiteRunStore(db *sql.DB) (*SQLiteRunStore, error) {
	s := &SQLiteRunStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate run store: %w", err)
	}
	return s, nil
}

func (s *SQLiteRunStore) migrate() error {
	stmts := []string{`
	CREATE TABLE IF NOT EXISTS runs (
		bundle_hash TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		product_id TEXT,
		spec_hash TEXT,
		checklist_hash TEXT NOT NULL,
		engine_version TEXT,
		state TEXT NOT NULL,
		grade TEXT,
		valid INTEGER NOT NULL,
		refusal_code TEXT,
		timestamp TEXT,
		determinism JSON,
		bundle JSON NOT NULL
	);`, `
	CREATE INDEX IF NOT EXISTS runs_run_id ON runs (run_id);`, `
	CREATE TABLE IF NOT EXISTS events (
		bundle_hash TEXT NOT NULL,
		seq INTEGER NOT NULL,
		gate_id TEXT NOT NULL,
		phase TEXT,
		outcome TEXT NOT NULL,
		code TEXT,
		message TEXT,
		invariant TEXT,
		evidence JSON,
		ts INTEGER,
		PRIMARY KEY (bundle_hash, seq)
	);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(context.Background(), q); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

// Save stores b and its events in one transaction. Saving an identical
// bundle twice is a no-op.
func (s *SQLiteRunStore) Save(ctx context.Context, b *compiler.Bundle) (err error) {
	data, err := b.Encode()
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	rec, err := json.Marshal(b.Determinism)
	if err != nil {
		return fmt.Errorf("encode determinism record: %w", err)
	}
	var refusalCode string
	if b.Refusal != nil {
		refusalCode = b.Refusal.Code
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO runs (
		bundle_hash, run_id, product_id, spec_hash, checklist_hash, engine_version, state, grade, valid, refusal_code, timestamp, determinism, bundle
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.CodegenBundleHash, b.RunID, b.ProductID, b.Lineage.SpecHash, b.ChecklistHash, b.Provenance.EngineVersion,
		string(b.State), string(b.Readiness.Grade), b.Valid, refusalCode, b.Provenance.TimestampUTC, string(rec), string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tx.Commit()
	}

	for _, e := range b.Events {
		evidence, err := json.Marshal(e.Evidence)
		if err != nil {
			return fmt.Errorf("encode evidence for event %d: %w", e.Seq, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO events (
			bundle_hash, seq, gate_id, phase, outcome, code, message, invariant, evidence, ts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.CodegenBundleHash, e.Seq, string(e.GateID), string(e.Phase), string(e.Outcome), e.Code, e.Message, e.Invariant, string(evidence), e.Ts,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event %d: %w", e.Seq, err)
		}
	}
	return tx.Commit()
}

const runColumns = `bundle_hash, run_id, product_id, spec_hash, checklist_hash, engine_version, state, grade, valid, refusal_code, timestamp, bundle`

// Get returns the run with the given bundle hash.
func (s *SQLiteRunStore) Get(ctx context.Context, bundleHash string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE bundle_hash = ?`, bundleHash)
	return scanRun(row)
}

// LatestByRunID returns the most recently stored run with runID.
func (s *SQLiteRunStore) LatestByRunID(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ? ORDER BY rowid DESC LIMIT 1`, runID)
	return scanRun(row)
}

// List returns up to limit runs, newest first.
func (s *SQLiteRunStore) List(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                                 Run
		productID, specHash, engine, code sql.NullString
		grade, timestamp                  sql.NullString
		state                             string
		bundle                            string
	)
	err := sc.Scan(&r.BundleHash, &r.RunID, &productID, &specHash, &r.ChecklistHash, &engine,
		&state, &grade, &r.Valid, &code, &timestamp, &bundle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.ProductID = productID.String
	r.SpecHash = specHash.String
	r.EngineVersion = engine.String
	r.State = conform.ConversionState(state)
	r.Grade = conform.Grade(grade.String)
	r.RefusalCode = code.String
	r.Bundle = []byte(bundle)
	if timestamp.Valid {
		if t, err := time.Parse(time.RFC3339, timestamp.String); err == nil {
			r.Timestamp = t
		}
	}
	return &r, nil
}

// Events returns the ledger of a stored run in sequence order.
func (s *SQLiteRunStore) Events(ctx context.Context, bundleHash string) ([]conform.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, gate_id, phase, outcome, code, message, invariant, evidence, ts
		FROM events
		WHERE bundle_hash = ?
		ORDER BY seq`, bundleHash)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []conform.Event
	for rows.Next() {
		var (
			e                                      conform.Event
			gate, phase, outcome                   string
			code, message, invariant, evidenceJSON sql.NullString
		)
		if err := rows.Scan(&e.Seq, &gate, &phase, &outcome, &code, &message, &invariant, &evidenceJSON, &e.Ts); err != nil {
			return nil, err
		}
		e.GateID = conform.GateID(gate)
		e.Phase = conform.Phase(phase)
		e.Outcome = conform.Outcome(outcome)
		e.Code = code.String
		e.Message = message.String
		e.Invariant = invariant.String
		e.Evidence = map[string]any{}
		if evidenceJSON.Valid && evidenceJSON.String != "" {
			dec := json.NewDecoder(bytes.NewReader([]byte(evidenceJSON.String)))
			dec.UseNumber()
			if err := dec.Decode(&e.Evidence); err != nil {
				return nil, fmt.Errorf("decode evidence for event %d: %w", e.Seq, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Record returns the determinism record of a stored run.
func (s *SQLiteRunStore) Record(ctx context.Context, bundleHash string) (determinism.Record, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT determinism FROM runs WHERE bundle_hash = ?`, bundleHash).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return determinism.Record{}, ErrNotFound
		}
		return determinism.Record{}, err
	}
	return determinism.Decode([]byte(raw.String))
}
