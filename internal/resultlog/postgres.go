package resultlog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/mwildeboer/scribeline/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresLog writes rows to a shared postgres database. Unlike the sqlite
// backend it ignores per-job log file overrides; all rows land in one table.
type PostgresLog struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresLog connects, pings, and applies pending migrations.
func NewPostgresLog(ctx context.Context, cfg config.ResultLogConfig, logger *slog.Logger) (*PostgresLog, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("result log connected to postgres")
	return &PostgresLog{pool: pool, logger: logger}, nil
}

func runMigrations(pool *pgxpool.Pool) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx", driver)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Append inserts the entry; an existing row for the job wins.
func (l *PostgresLog) Append(ctx context.Context, entry Entry) error {
	if entry.JobID == "" {
		return ErrMissingJobID
	}

	tag, err := l.pool.Exec(ctx, `
		INSERT INTO job_results (
			job_id, audio_relative_path, processing_start_time, processing_end_time,
			duration_seconds, status, error_message,
			config_whisper_model, config_compute_type, config_language, config_mode,
			config_llm_context_prompt,
			result_speaker_mapping_json, result_transcript_json, result_transcript_html_path,
			result_llm_summary, result_llm_intent, result_llm_actions, result_llm_emotion,
			result_llm_questions, result_llm_legal, result_llm_final_analysis,
			result_advanced_analysis_path, result_summary_path, result_raw_transcript_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (job_id) DO NOTHING`,
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

	if tag.RowsAffected() == 0 {
		l.logger.Info("result row already present, skipping",
			slog.String("job_id", entry.JobID))
		return nil
	}
	l.logger.Info("result row written", slog.String("job_id", entry.JobID))
	return nil
}

func (l *PostgresLog) Ping(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

func (l *PostgresLog) Close() error {
	l.pool.Close()
	return nil
}

var _ Log = (*PostgresLog)(nil)
