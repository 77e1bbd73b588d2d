package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all process-level configuration for the scribeline server.
// Per-job pipeline settings live in Pipeline and are merged from overrides at
// job submission time.
type Config struct {
	Server    ServerConfig
	Paths     PathsConfig
	Workers   WorkersConfig
	ResultLog ResultLogConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Audio     AudioConfig
	Pipeline  Pipeline
}

type ServerConfig struct {
	Port int
	Env  string
}

// PathsConfig anchors every artifact the pipeline reads or writes under a
// single data root. Job file paths are always resolved against Root and
// rejected if they escape it.
type PathsConfig struct {
	Root string
}

// UploadDir is where submitted audio files live.
func (p PathsConfig) UploadDir() string { return filepath.Join(p.Root, "audio") }

// TranscriptsDir holds intermediate and final transcript JSON.
func (p PathsConfig) TranscriptsDir() string { return filepath.Join(p.Root, "transcripts") }

// ResultsDir holds rendered HTML and analysis output.
func (p PathsConfig) ResultsDir() string { return filepath.Join(p.Root, "results") }

type WorkersConfig struct {
	PoolSize int
}

type ResultLogConfig struct {
	Driver          string // "sqlite" or "postgres"
	SQLiteFile      string
	PostgresURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string // empty disables the redis status mirror
}

type LLMConfig struct {
	Provider     string
	OllamaURL    string
	Timeout      time.Duration
	FinalTimeout time.Duration
}

// AudioConfig configures the external speech-processing command.
type AudioConfig struct {
	Command string
	Timeout time.Duration
}

var validResultLogDrivers = map[string]bool{
	"sqlite":   true,
	"postgres": true,
}

var validLLMProviders = map[string]bool{
	"ollama": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("SCRIBELINE_PORT", 8080),
			Env:  envString("SCRIBELINE_ENV", "development"),
		},
		Paths: PathsConfig{
			Root: envString("SCRIBELINE_DATA_DIR", "data"),
		},
		Workers: WorkersConfig{
			PoolSize: envInt("SCRIBELINE_WORKERS", 4),
		},
		ResultLog: ResultLogConfig{
			Driver:          envString("RESULT_LOG_DRIVER", "sqlite"),
			SQLiteFile:      envString("RESULT_LOG_SQLITE_FILE", "job_results.db"),
			PostgresURL:     os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		LLM: LLMConfig{
			Provider:     envString("LLM_PROVIDER", "ollama"),
			OllamaURL:    envString("OLLAMA_BASE_URL", "http://localhost:11434"),
			Timeout:      envDurationSecs("LLM_TIMEOUT_SECS", 120*time.Second),
			FinalTimeout: envDurationSecs("LLM_FINAL_TIMEOUT_SECS", 300*time.Second),
		},
		Audio: AudioConfig{
			Command: envString("TRANSCRIBE_COMMAND", "whisperx"),
			Timeout: envDurationSecs("TRANSCRIBE_TIMEOUT_SECS", 3600*time.Second),
		},
		Pipeline: Pipeline{
			Mode:           envString("PIPELINE_MODE", ModeFast),
			WhisperModel:   envString("WHISPER_MODEL", "small"),
			ComputeType:    envString("COMPUTE_TYPE", "int8"),
			Language:       os.Getenv("PIPELINE_LANGUAGE"),
			NameDetection:  envBool("NAME_DETECTION_ENABLED", false),
			WordTimestamps: envBool("WORD_TIMESTAMPS_ENABLED", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SCRIBELINE_PORT must be in (0, 65535], got %d", c.Server.Port)
	}

	if c.Workers.PoolSize <= 0 {
		return fmt.Errorf("SCRIBELINE_WORKERS must be positive, got %d", c.Workers.PoolSize)
	}

	if !validResultLogDrivers[c.ResultLog.Driver] {
		return fmt.Errorf("RESULT_LOG_DRIVER must be one of sqlite, postgres; got %q", c.ResultLog.Driver)
	}
	if c.ResultLog.Driver == "postgres" && c.ResultLog.PostgresURL == "" {
		return fmt.Errorf("DATABASE_URL is required when RESULT_LOG_DRIVER is postgres")
	}

	if !validLLMProviders[c.LLM.Provider] {
		return fmt.Errorf("LLM_PROVIDER must be one of ollama, mock; got %q", c.LLM.Provider)
	}

	if c.Pipeline.Mode != ModeFast && c.Pipeline.Mode != ModeAdvanced {
		return fmt.Errorf("PIPELINE_MODE must be fast or advanced, got %q", c.Pipeline.Mode)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
