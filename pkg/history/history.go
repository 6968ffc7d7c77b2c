package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Run is one recorded training run.
type Run struct {
	ID          int64
	StartedAt   time.Time
	ConfigPath  string
	OutputPath  string
	Dataset     string
	BuildType   string
	BuildTarget string
	Seed        int64
	NumTrees    int
	NumNodes    []int
	TrainSize   int
	TestSize    int
	Accuracy    float64
	Agreement   float64
}

// Store is a SQLite-backed run log.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at   INTEGER NOT NULL,
	config_path  TEXT NOT NULL,
	output_path  TEXT NOT NULL,
	dataset      TEXT NOT NULL,
	build_type   TEXT NOT NULL,
	build_target TEXT NOT NULL,
	seed         INTEGER NOT NULL,
	num_trees    INTEGER NOT NULL,
	num_nodes    TEXT NOT NULL,
	train_size   INTEGER NOT NULL,
	test_size    INTEGER NOT NULL,
	accuracy     REAL NOT NULL,
	agreement    REAL NOT NULL
);`

// Open opens or creates the run log at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening history %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "initializing history %s", path)
	}
	return &Store{db: db}, nil
}

// Record appends r and returns its id.
func (s *Store) Record(ctx context.Context, r Run) (int64, error) {
	nodes, err := json.Marshal(r.NumNodes)
	if err != nil {
		return 0, errors.Wrap(err, "encoding num_nodes")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, config_path, output_path, dataset, build_type, build_target,
			seed, num_trees, num_nodes, train_size, test_size, accuracy, agreement)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.UnixNano(), r.ConfigPath, r.OutputPath, r.Dataset, r.BuildType, r.BuildTarget,
		r.Seed, r.NumTrees, string(nodes), r.TrainSize, r.TestSize, r.Accuracy, r.Agreement)
	if err != nil {
		return 0, errors.Wrap(err, "recording run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "recording run")
	}
	return id, nil
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, config_path, output_path, dataset, build_type, build_target,
			seed, num_trees, num_nodes, train_size, test_size, accuracy, agreement
		FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "querying runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started int64
			nodes   string
		)
		if err := rows.Scan(&r.ID, &started, &r.ConfigPath, &r.OutputPath, &r.Dataset, &r.BuildType,
			&r.BuildTarget, &r.Seed, &r.NumTrees, &nodes, &r.TrainSize, &r.TestSize, &r.Accuracy,
			&r.Agreement); err != nil {
			return nil, errors.Wrap(err, "scanning run")
		}
		r.StartedAt = time.Unix(0, started)
		if err := json.Unmarshal([]byte(nodes), &r.NumNodes); err != nil {
			return nil, errors.Wrapf(err, "decoding num_nodes of run %d", r.ID)
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "iterating runs")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
