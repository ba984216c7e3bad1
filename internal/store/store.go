// Package store persists knowledge records in a single SQLite database.
//
// A run groups the records of one extraction (a patent scan, a file, an MCP call).
// Records keep their sentence; entities and facts hang off the record they came from.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/kgex/internal/cache"
	"github.com/ppiankov/kgex/internal/model"
)

// DefaultListLimit caps ListFacts when no limit is given
const DefaultListLimit = 100

// timeFormat is fixed width so stored times sort as text
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const topRelationLimit = 10

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("run not found")

// Run is one saved extraction
type Run struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	Records   int       `json:"records"`
	Facts     int       `json:"facts"`
}

// StoredFact is a fact together with where it was extracted from
type StoredFact struct {
	ID       int64  `json:"id"`
	RunID    string `json:"run_id"`
	Source   string `json:"source"`
	Sentence string `json:"sentence"`
	model.Fact
}

// ListOpts filters ListFacts. Entity matches head or tail as a case-insensitive
// substring; Relation matches the phrase exactly, ignoring case.
type ListOpts struct {
	Entity   string
	Relation string
	RunID    string
	Source   string
	Limit    int
	Offset   int
}

// Stats holds totals across all runs
type Stats struct {
	Runs         int64                 `json:"runs"`
	Records      int64                 `json:"records"`
	Entities     int64                 `json:"unique_entities"`
	Facts        int64                 `json:"facts"`
	TopRelations []model.RelationCount `json:"top_relations,omitempty"`
}

// Store defines the persistence operations
type Store interface {
	SaveRun(ctx context.Context, source string, records []model.KnowledgeRecord) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
	ListFacts(ctx context.Context, opts ListOpts) ([]*StoredFact, error)
	Records(ctx context.Context, runID string) ([]model.KnowledgeRecord, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store on modernc.org/sqlite
type SQLiteStore struct {
	db    *sql.DB
	path  string
	newID func() string
	now   func() time.Time
}

// Open opens (creating if needed) the database at path. Pass ":memory:" for tests.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	if path != ":memory:" {
		path = cache.ExpandHome(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// pragmas are per connection and :memory: databases are per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:    db,
		path:  path,
		newID: uuid.NewString,
		now:   time.Now,
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// OpenFromConfig opens the configured database
func OpenFromConfig(cfg model.StoreConfig) (*SQLiteStore, error) {
	return Open(cfg.Path)
}

// Path returns the database location
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	sentence TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	record_id INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	text      TEXT NOT NULL,
	PRIMARY KEY (record_id, position)
);

CREATE TABLE IF NOT EXISTS facts (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	head      TEXT NOT NULL,
	relation  TEXT NOT NULL,
	tail      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, position);
CREATE INDEX IF NOT EXISTS idx_entities_text ON entities(text);
CREATE INDEX IF NOT EXISTS idx_facts_record ON facts(record_id, position);
CREATE INDEX IF NOT EXISTS idx_facts_relation ON facts(relation COLLATE NOCASE);
`

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores all records of one extraction in a single transaction
func (s *SQLiteStore) SaveRun(ctx context.Context, source string, records []model.KnowledgeRecord) (*Run, error) {
	run := &Run{
		ID:        s.newID(),
		Source:    source,
		CreatedAt: s.now().UTC(),
		Records:   len(records),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, created_at) VALUES (?, ?, ?)`,
		run.ID, run.Source, run.CreatedAt.Format(timeFormat),
	); err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}

	for i, rec := range records {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO records (run_id, position, sentence) VALUES (?, ?, ?)`,
			run.ID, i, rec.Sentence,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting record %d: %w", i, err)
		}
		recordID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting record ID: %w", err)
		}

		for j, entity := range rec.Entities {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO entities (record_id, position, text) VALUES (?, ?, ?)`,
				recordID, j, entity,
			); err != nil {
				return nil, fmt.Errorf("inserting entity: %w", err)
			}
		}
		for j, f := range rec.Facts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO facts (record_id, position, head, relation, tail) VALUES (?, ?, ?, ?, ?)`,
				recordID, j, f.Head, f.Relation, f.Tail,
			); err != nil {
				return nil, fmt.Errorf("inserting fact: %w", err)
			}
			run.Facts++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing run: %w", err)
	}
	return run, nil
}

const runColumns = `r.id, r.source, r.created_at,
	(SELECT COUNT(*) FROM records WHERE run_id = r.id),
	(SELECT COUNT(*) FROM facts f JOIN records rc ON rc.id = f.record_id WHERE rc.run_id = r.id)`

// GetRun returns one run with its counts
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns the most recent runs first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs r ORDER BY r.created_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run     Run
		created string
	)
	if err := row.Scan(&run.ID, &run.Source, &created, &run.Records, &run.Facts); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("parsing run time %q: %w", created, err)
	}
	run.CreatedAt = t
	return &run, nil
}

// DeleteRun removes a run and everything extracted in it
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// ListFacts returns stored facts in extraction order
func (s *SQLiteStore) ListFacts(ctx context.Context, opts ListOpts) ([]*StoredFact, error) {
	query := `SELECT f.id, r.id, r.source, rc.sentence, f.head, f.relation, f.tail
		FROM facts f
		JOIN records rc ON rc.id = f.record_id
		JOIN runs r ON r.id = rc.run_id`

	var (
		where []string
		args  []any
	)
	if opts.Entity != "" {
		pattern := "%" + escapeLike(strings.ToLower(opts.Entity)) + "%"
		where = append(where, `(lower(f.head) LIKE ? ESCAPE '\' OR lower(f.tail) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if opts.Relation != "" {
		where = append(where, `f.relation = ? COLLATE NOCASE`)
		args = append(args, opts.Relation)
	}
	if opts.RunID != "" {
		where = append(where, `r.id = ?`)
		args = append(args, opts.RunID)
	}
	if opts.Source != "" {
		where = append(where, `r.source = ?`)
		args = append(args, opts.Source)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += " ORDER BY f.id LIMIT ? OFFSET ?"
	args = append(args, limit, max(opts.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var facts []*StoredFact
	for rows.Next() {
		var f StoredFact
		if err := rows.Scan(&f.ID, &f.RunID, &f.Source, &f.Sentence, &f.Head, &f.Relation, &f.Tail); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		facts = append(facts, &f)
	}
	return facts, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Records reassembles the knowledge records of a run in their original order
func (s *SQLiteStore) Records(ctx context.Context, runID string) ([]model.KnowledgeRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sentence FROM records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	var (
		ids     []int64
		records []model.KnowledgeRecord
	)
	for rows.Next() {
		var (
			id       int64
			sentence string
		)
		if err := rows.Scan(&id, &sentence); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		ids = append(ids, id)
		records = append(records, model.KnowledgeRecord{Sentence: sentence, Entities: []string{}, Facts: []model.Fact{}})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// one connection: the record cursor must be closed before the next query
	for i, id := range ids {
		entities, err := s.queryStrings(ctx, `SELECT text FROM entities WHERE record_id = ? ORDER BY position`, id)
		if err != nil {
			return nil, err
		}
		records[i].Entities = append(records[i].Entities, entities...)

		frows, err := s.db.QueryContext(ctx,
			`SELECT head, relation, tail FROM facts WHERE record_id = ? ORDER BY position`, id)
		if err != nil {
			return nil, fmt.Errorf("listing facts: %w", err)
		}
		for frows.Next() {
			var f model.Fact
			if err := frows.Scan(&f.Head, &f.Relation, &f.Tail); err != nil {
				_ = frows.Close()
				return nil, fmt.Errorf("scanning fact: %w", err)
			}
			records[i].Facts = append(records[i].Facts, f)
		}
		err = frows.Err()
		_ = frows.Close()
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Stats returns totals and the most used relation phrases
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM runs`, &stats.Runs},
		{`SELECT COUNT(*) FROM records`, &stats.Records},
		{`SELECT COUNT(DISTINCT text) FROM entities`, &stats.Entities},
		{`SELECT COUNT(*) FROM facts`, &stats.Facts},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT relation, COUNT(*) AS n FROM facts GROUP BY relation ORDER BY n DESC, relation ASC LIMIT ?`, topRelationLimit)
	if err != nil {
		return nil, fmt.Errorf("counting relations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var rc model.RelationCount
		if err := rows.Scan(&rc.Relation, &rc.Count); err != nil {
			return nil, err
		}
		stats.TopRelations = append(stats.TopRelations, rc)
	}
	return stats, rows.Err()
}
