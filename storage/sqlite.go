package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"agency_listings/models"
)

// SQLiteStore keeps the local run history: one row per fetch run, the
// per-feed counts of that run and its log lines.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fetch_runs (
		id INTEGER PRIMARY KEY,
		run_uuid TEXT NOT NULL UNIQUE,
		agent_key TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		listings_written INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		output_path TEXT
	);

	CREATE TABLE IF NOT EXISTS feed_counts (
		run_id INTEGER NOT NULL,
		feed TEXT NOT NULL,
		rt TEXT,
		count INTEGER,
		optional BOOLEAN DEFAULT FALSE,
		failed BOOLEAN DEFAULT FALSE,
		PRIMARY KEY (run_id, feed),
		FOREIGN KEY (run_id) REFERENCES fetch_runs(id)
	);

	CREATE TABLE IF NOT EXISTS fetch_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		feed TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON fetch_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON fetch_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.FetchRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (run_uuid, agent_key, started_at, status, output_path)
		VALUES (?, ?, ?, ?, ?)`,
		run.UUID.String(), run.AgentKey, run.StartedAt, run.Status, run.OutputPath)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.FetchRun) error {
	_, err := s.db.Exec(`
		UPDATE fetch_runs SET finished_at = ?, status = ?, listings_found = ?,
			listings_written = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound, run.ListingsWritten, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) SaveFeedCounts(runID int64, counts []models.FeedCount) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO feed_counts (run_id, feed, rt, count, optional, failed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, feed) DO UPDATE SET
			count = excluded.count,
			failed = excluded.failed`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range counts {
		if _, err := stmt.Exec(runID, c.Feed, c.RT, c.Count, c.Optional, c.Failed); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, feed string) error {
	_, err := s.db.Exec(`
		INSERT INTO fetch_logs (run_id, timestamp, level, message, feed)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, feed)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.FetchRun, error) {
	row := s.db.QueryRow(`
		SELECT id, run_uuid, agent_key, started_at, finished_at, status,
			listings_found, listings_written, errors_count, output_path
		FROM fetch_runs WHERE id = ?`, id)

	var run models.FetchRun
	var runUUID string
	var finished sql.NullTime
	err := row.Scan(&run.ID, &runUUID, &run.AgentKey, &run.StartedAt, &finished, &run.Status,
		&run.ListingsFound, &run.ListingsWritten, &run.ErrorsCount, &run.OutputPath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	run.UUID, err = uuid.Parse(runUUID)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStore) GetFeedCounts(runID int64) ([]models.FeedCount, error) {
	rows, err := s.db.Query(`
		SELECT run_id, feed, rt, count, optional, failed
		FROM feed_counts WHERE run_id = ? ORDER BY feed`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.FeedCount
	for rows.Next() {
		var c models.FeedCount
		if err := rows.Scan(&c.RunID, &c.Feed, &c.RT, &c.Count, &c.Optional, &c.Failed); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) GetLogs(runID int64) ([]models.FetchLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, feed
		FROM fetch_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.FetchLog
	for rows.Next() {
		var l models.FetchLog
		var feed sql.NullString
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &feed); err != nil {
			return nil, err
		}
		l.Feed = feed.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetLastRunTime returns the start of the most recent completed run, or the
// zero time when there is none.
func (s *SQLiteStore) GetLastRunTime() (time.Time, error) {
	var t time.Time
	err := s.db.QueryRow(`
		SELECT started_at FROM fetch_runs WHERE status = ?
		ORDER BY started_at DESC LIMIT 1`, models.RunStatusCompleted).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return t, err
}
