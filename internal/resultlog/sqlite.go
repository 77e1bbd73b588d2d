package resultlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS job_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL UNIQUE,
	audio_relative_path TEXT NOT NULL,
	processing_start_time TIMESTAMP,
	processing_end_time TIMESTAMP,
	duration_seconds REAL,
	status TEXT,
	error_message TEXT,
	config_whisper_model TEXT,
	config_compute_type TEXT,
	config_language TEXT,
	config_mode TEXT,
	config_llm_context_prompt TEXT,
	result_speaker_mapping_json TEXT,
	result_transcript_json TEXT,
	result_transcript_html_path TEXT,
	result_llm_summary TEXT,
	result_llm_intent TEXT,
	result_llm_actions TEXT,
	result_llm_emotion TEXT,
	result_llm_questions TEXT,
	result_llm_legal TEXT,
	result_llm_final_analysis TEXT,
	result_advanced_analysis_path TEXT,
	result_summary_path TEXT,
	result_raw_transcript_path TEXT
);
CREATE INDEX IF NOT EXISTS idx_job_results_job_id ON job_results(job_id);
`

// SQLiteLog writes rows to per-file sqlite databases. A job config can point
// its row at a different file, so handles are opened lazily and cached by
// resolved path.
type SQLiteLog struct {
	root        string
	defaultFile string
	logger      *slog.Logger

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewSQLiteLog(root, defaultFile string, logger *slog.Logger) *SQLiteLog {
	return &SQLiteLog{
		root:        root,
		defaultFile: defaultFile,
		logger:      logger,
		dbs:         make(map[string]*sql.DB),
	}
}

// resolvePath maps an entry's log file override onto the data root. Absolute
// paths are honored as-is.
func (l *SQLiteLog) resolvePath(logFile string) string {
	name := logFile
	if name == "" {
		name = l.defaultFile
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.root, name)
}

func (l *SQLiteLog) db(path string) (*sql.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if db, ok := l.dbs[path]; ok {
		return db, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create result log directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open result log %s: %w", path, err)
	}
	// modernc sqlite does not support concurrent writers on one handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize result log schema: %w", err)
	}

	l.dbs[path] = db
	l.logger.Debug("opened result log database", slog.String("path", path))
	return db, nil
}

// Append writes the entry unless a row for the job already exists.
func (l *SQLiteLog) Append(ctx context.Context, entry Entry) error {
	if entry.JobID == "" {
		return ErrMissingJobID
	}

	path := l.resolvePath(entry.LogFile)
	db, err := l.db(path)
	if err != nil {
		return err
	}

	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM job_results WHERE job_id = ?)`, entry.JobID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check existing result row: %w", err)
	}
	if exists {
		l.logger.Info("result row already present, skipping",
			slog.String("job_id", entry.JobID))
		return nil
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO job_results (
			job_id, audio_relative_path, processing_start_time, processing_end_time,
			duration_seconds, status, error_message,
			config_whisper_model, config_compute_type, config_language, config_mode,
			config_llm_context_prompt,
			result_speaker_mapping_json, result_transcript_json, result_transcript_html_path,
			result_llm_summary, result_llm_intent, result_llm_actions, result_llm_emotion,
			result_llm_questions, result_llm_legal, result_llm_final_analysis,
			result_advanced_analysis_path, result_summary_path, result_raw_transcript_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.JobID, entry.AudioPath, entry.StartTime, entry.EndTime,
		entry.Duration, entry.Status, entry.ErrorMessage,
		entry.WhisperModel, entry.ComputeType, entry.Language, entry.Mode,
		entry.ContextPrompt,
		entry.SpeakerMapJSON, entry.TranscriptJSON, entry.HTMLPath,
		entry.Summary, entry.Intent, entry.Actions, entry.Emotion,
		entry.Questions, entry.Legal, entry.FinalAnalysis,
		entry.AdvancedPath, entry.SummaryPath, entry.RawPath)
	if err != nil {
		return fmt.Errorf("insert result row for %s: %w", entry.JobID, err)
	}

	l.logger.Info("result row written",
		slog.String("job_id", entry.JobID),
		slog.String("db", filepath.Base(path)))
	return nil
}

// Ping verifies the default database file is usable.
func (l *SQLiteLog) Ping(ctx context.Context) error {
	db, err := l.db(l.resolvePath(""))
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes every cached database handle.
func (l *SQLiteLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for path, db := range l.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.dbs, path)
	}
	return firstErr
}

var _ Log = (*SQLiteLog)(nil)
