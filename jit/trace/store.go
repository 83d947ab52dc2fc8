package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	seed        INTEGER NOT NULL,
	label       TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	call_site     TEXT NOT NULL,
	round         INTEGER NOT NULL,
	state         TEXT NOT NULL,
	profiling     INTEGER NOT NULL,
	reason        TEXT NOT NULL,
	recompiled    INTEGER NOT NULL,
	chain_json    TEXT NOT NULL,
	ideal_json    TEXT,
	ideal_cost    REAL NOT NULL,
	historic_cost REAL,
	per_call_cost REAL NOT NULL,
	observations  INTEGER NOT NULL,
	history_len   INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id, id);
`

// RunInfo describes a persisted run.
type RunInfo struct {
	RunID     string
	Seed      int64
	Label     string
	CreatedAt time.Time
	Decisions int
}

// Store persists decision traces in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) a SQLite database and runs migrations.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores records under a new run id and returns it.
func (s *Store) SaveRun(seed int64, label string, records []DecisionRecord) (string, error) {
	runID := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, seed, label, created_at) VALUES (?, ?, ?, ?)`,
		runID, seed, nullIfEmpty(label), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO decisions (run_id, call_site, round, state, profiling, reason, recompiled,
		 chain_json, ideal_json, ideal_cost, historic_cost, per_call_cost, observations, history_len)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		chainJSON, err := json.Marshal(nonNil(r.Chain))
		if err != nil {
			return "", fmt.Errorf("marshal chain: %w", err)
		}
		var idealJSON interface{}
		if r.IdealChain != nil {
			b, err := json.Marshal(r.IdealChain)
			if err != nil {
				return "", fmt.Errorf("marshal ideal chain: %w", err)
			}
			idealJSON = string(b)
		}
		var historic interface{}
		if r.HasHistoric {
			historic = r.HistoricCost
		}
		_, err = stmt.Exec(runID, r.CallSite, int64(r.Round), r.State, boolToInt(r.Profiling), r.Reason,
			boolToInt(r.Recompiled), string(chainJSON), idealJSON, r.IdealCost, historic,
			r.PerCallCost, int64(r.Observations), r.HistoryLen)
		if err != nil {
			return "", fmt.Errorf("insert decision: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// LoadRun returns the records of a run in insertion order.
func (s *Store) LoadRun(runID string) ([]DecisionRecord, error) {
	rows, err := s.db.Query(
		`SELECT call_site, round, state, profiling, reason, recompiled, chain_json, ideal_json,
		 ideal_cost, historic_cost, per_call_cost, observations, history_len
		 FROM decisions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var r DecisionRecord
		var round, observations int64
		var profiling, recompiled int
		var chainJSON string
		var idealJSON sql.NullString
		var historic sql.NullFloat64
		if err := rows.Scan(&r.CallSite, &round, &r.State, &profiling, &r.Reason, &recompiled,
			&chainJSON, &idealJSON, &r.IdealCost, &historic, &r.PerCallCost, &observations, &r.HistoryLen); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		r.Round = uint64(round)
		r.Observations = uint64(observations)
		r.Profiling = profiling != 0
		r.Recompiled = recompiled != 0
		if err := json.Unmarshal([]byte(chainJSON), &r.Chain); err != nil {
			return nil, fmt.Errorf("unmarshal chain: %w", err)
		}
		if idealJSON.Valid {
			if err := json.Unmarshal([]byte(idealJSON.String), &r.IdealChain); err != nil {
				return nil, fmt.Errorf("unmarshal ideal chain: %w", err)
			}
		}
		if historic.Valid {
			r.HistoricCost = historic.Float64
			r.HasHistoric = true
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

// ListRuns returns runs in reverse insertion order, at most limit (0 = all).
func (s *Store) ListRuns(limit int) ([]RunInfo, error) {
	query := `SELECT r.run_id, r.seed, r.label, r.created_at,
		(SELECT COUNT(*) FROM decisions d WHERE d.run_id = r.run_id)
		FROM runs r ORDER BY r.rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var ri RunInfo
		var label sql.NullString
		var created string
		if err := rows.Scan(&ri.RunID, &ri.Seed, &label, &created, &ri.Decisions); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ri.Label = label.String
		ri.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of run %s: %w", ri.RunID, err)
		}
		out = append(out, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
