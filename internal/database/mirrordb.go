package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitemirror/internal/model"
)

// FileName is the database file name inside the data directory.
const FileName = "sitemirror.db"

// timeLayout stores timestamps with fixed-width fractions so that text
// ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// MirrorDB stores mirror job reports.
type MirrorDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures MirrorDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the MirrorDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*MirrorDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	// Foreign keys are enabled per connection through the DSN.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	mdb := &MirrorDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := mdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return mdb, nil
}

// Close closes the database connection.
func (mdb *MirrorDB) Close() error {
	return mdb.db.Close()
}

// Path returns the database file path.
func (mdb *MirrorDB) Path() string {
	return mdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (mdb *MirrorDB) createTables() error {
	schema := `
	-- One row per finished mirror job
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		seed_url TEXT NOT NULL,
		download_root TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		page_count INTEGER DEFAULT 0,
		entry_count INTEGER DEFAULT 0,
		failed_count INTEGER DEFAULT 0,
		total_bytes INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_host ON jobs(host);
	CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);

	-- Captured resources of each job, in discovery order
	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		mime TEXT,
		local_path TEXT,
		replace_name INTEGER DEFAULT 0,
		status_code INTEGER,
		size INTEGER,
		hash TEXT,
		error TEXT,
		UNIQUE(job_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_job ON entries(job_id);
	CREATE INDEX IF NOT EXISTS idx_entries_hash ON entries(hash);
	`

	_, err := mdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores report and its entries in one transaction and sets
// report.ID.
func (mdb *MirrorDB) SaveReport(ctx context.Context, report *model.MirrorReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var finishedAt sql.NullString
	if !report.FinishedAt.IsZero() {
		finishedAt = sql.NullString{String: report.FinishedAt.UTC().Format(timeLayout), Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
	INSERT INTO jobs (host, seed_url, download_root, started_at, finished_at, status,
		page_count, entry_count, failed_count, total_bytes, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Host,
		report.SeedURL,
		report.DownloadRoot,
		report.StartedAt.UTC().Format(timeLayout),
		finishedAt,
		report.Status(),
		len(report.Pages),
		len(report.Entries),
		report.FailedCount(),
		report.TotalBytes(),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read job id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO entries (job_id, position, url, mime, local_path, replace_name, status_code, size, hash, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(job_id, url) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range report.Entries {
		if _, err := stmt.ExecContext(ctx, id, i, e.OriginalURL, e.Mime, e.LocalPath,
			e.Replace, e.StatusCode, e.Size, e.Hash, e.Error); err != nil {
			return 0, fmt.Errorf("failed to insert entry %s: %w", e.OriginalURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit job: %w", err)
	}

	report.ID = id
	return id, nil
}

// GetReport retrieves a job report by ID. It returns nil, nil when no job
// has that ID.
func (mdb *MirrorDB) GetReport(ctx context.Context, id int64) (*model.MirrorReport, error) {
	var reportJSON string
	err := mdb.db.QueryRowContext(ctx, `SELECT report_json FROM jobs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job report: %w", err)
	}
	return decodeReport(id, reportJSON)
}

// LatestReports returns up to limit reports of host, newest first.
func (mdb *MirrorDB) LatestReports(ctx context.Context, host string, limit int) ([]*model.MirrorReport, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT id, report_json FROM jobs
	WHERE host = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, host, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.MirrorReport
	for rows.Next() {
		var id int64
		var reportJSON string
		if err := rows.Scan(&id, &reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan job report: %w", err)
		}
		report, err := decodeReport(id, reportJSON)
		if err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func decodeReport(id int64, reportJSON string) (*model.MirrorReport, error) {
	var report model.MirrorReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	report.ID = id
	return &report, nil
}

// ListHosts returns every host with at least one saved job.
func (mdb *MirrorDB) ListHosts(ctx context.Context) ([]string, error) {
	rows, err := mdb.db.QueryContext(ctx, `SELECT DISTINCT host FROM jobs ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// JobMetadata summarizes a saved job without loading its report.
type JobMetadata struct {
	// ID is the unique identifier of the job in the database.
	ID int64

	// Host is the mirrored origin.
	Host string

	// SeedURL is where the job started.
	SeedURL string

	// StartedAt is when the job started.
	StartedAt time.Time

	// Status is complete, stopped or error.
	Status string

	// Pages, Entries, Failed and Bytes are the job counters.
	Pages   int
	Entries int
	Failed  int
	Bytes   int64
}

// ListJobs returns metadata of every job of host, newest first.
func (mdb *MirrorDB) ListJobs(ctx context.Context, host string) ([]JobMetadata, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT id, host, seed_url, started_at, status, page_count, entry_count, failed_count, total_bytes
	FROM jobs
	WHERE host = ?
	ORDER BY started_at DESC, id DESC
	`, host)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var results []JobMetadata
	for rows.Next() {
		var meta JobMetadata
		var startedAt string
		if err := rows.Scan(&meta.ID, &meta.Host, &meta.SeedURL, &startedAt, &meta.Status,
			&meta.Pages, &meta.Entries, &meta.Failed, &meta.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetEntries returns the stored entries of a job in discovery order.
func (mdb *MirrorDB) GetEntries(ctx context.Context, jobID int64) ([]model.Entry, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT url, mime, local_path, replace_name, status_code, size, hash, error
	FROM entries
	WHERE job_id = ?
	ORDER BY position
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var e model.Entry
		var mime, localPath, hash, errMsg sql.NullString
		var status, size sql.NullInt64
		if err := rows.Scan(&e.OriginalURL, &mime, &localPath, &e.Replace, &status, &size, &hash, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Mime = mime.String
		e.LocalPath = localPath.String
		e.StatusCode = int(status.Int64)
		e.Size = size.Int64
		e.Hash = hash.String
		e.Error = errMsg.String
		e.Downloaded = true
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteJob removes a job and its entries. It reports whether the job
// existed.
func (mdb *MirrorDB) DeleteJob(ctx context.Context, id int64) (bool, error) {
	result, err := mdb.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
