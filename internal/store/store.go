// Package store archives completed review runs in a SQLite database so
// past reviews can be listed and re-read without hitting the API again.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mrlead/mrlead/internal/gitlab"
	"github.com/mrlead/mrlead/internal/review"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at    TEXT NOT NULL,
	project_path  TEXT NOT NULL,
	mr_iid        INTEGER NOT NULL,
	mr_title      TEXT NOT NULL,
	sha           TEXT NOT NULL,
	provider      TEXT NOT NULL,
	summary_only  INTEGER NOT NULL DEFAULT 0,
	diff_lines    INTEGER NOT NULL DEFAULT 0,
	fragments     INTEGER NOT NULL DEFAULT 0,
	blockers      INTEGER NOT NULL DEFAULT 0,
	result_json   TEXT NOT NULL,
	stats_json    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_project_mr ON runs(project_path, mr_iid);
`

// Store wraps the runs database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Run is one archived review.
type Run struct {
	ID          int64
	CreatedAt   time.Time
	ProjectPath string
	MRIID       int
	MRTitle     string
	SHA         string
	Provider    string
	SummaryOnly bool
	DiffLines   int
	Fragments   int
	Blockers    int
	Result      *review.Result
	Stats       *review.PipelineStats
}

// Open opens or creates the runs database at dir/runs.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	dbPath := filepath.Join(dir, "runs.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open runs db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// SaveRun archives one completed review. It returns the new run id.
func (s *Store) SaveRun(mr *gitlab.MRData, provider string, result *review.Result, stats *review.PipelineStats) (int64, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("marshal result: %w", err)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return 0, fmt.Errorf("marshal stats: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO runs (created_at, project_path, mr_iid, mr_title, sha, provider,
			summary_only, diff_lines, fragments, blockers, result_json, stats_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		mr.ProjectPath, mr.IID, mr.Title, mr.SHA, provider,
		boolToInt(stats.SummaryOnlyMode), stats.DiffLines, stats.ContextFragments,
		len(result.Blockers), string(resultJSON), string(statsJSON))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, created_at, project_path, mr_iid, mr_title, sha, provider,
			summary_only, diff_lines, fragments, blockers, result_json, stats_json
		FROM runs ORDER BY id DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun loads one archived run by id.
func (s *Store) GetRun(id int64) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, project_path, mr_iid, mr_title, sha, provider,
			summary_only, diff_lines, fragments, blockers, result_json, stats_json
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var createdAt, resultJSON, statsJSON string
	var summaryOnly int
	err := row.Scan(&run.ID, &createdAt, &run.ProjectPath, &run.MRIID, &run.MRTitle,
		&run.SHA, &run.Provider, &summaryOnly, &run.DiffLines, &run.Fragments,
		&run.Blockers, &resultJSON, &statsJSON)
	if err != nil {
		return Run{}, err
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	run.SummaryOnly = summaryOnly != 0

	run.Result = &review.Result{}
	if err := json.Unmarshal([]byte(resultJSON), run.Result); err != nil {
		return Run{}, fmt.Errorf("unmarshal result for run %d: %w", run.ID, err)
	}
	run.Stats = &review.PipelineStats{}
	if err := json.Unmarshal([]byte(statsJSON), run.Stats); err != nil {
		return Run{}, fmt.Errorf("unmarshal stats for run %d: %w", run.ID, err)
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
