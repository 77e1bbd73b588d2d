// Package transcribe runs the external speech-processing command that turns
// an audio file into a diarized segment transcript.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/pkg/models"
)

// Request describes one transcription run.
type Request struct {
	AudioPath      string
	OutputDir      string
	Model          string
	ComputeType    string
	Language       string
	WordTimestamps bool
}

// Result holds the parsed transcript and where its JSON landed on disk.
type Result struct {
	Segments []models.Segment
	JSONPath string
	Language string
}

// StageError is a stage-aware error carrying the external command context.
type StageError struct {
	Stage    string
	Message  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *StageError) Error() string {
	if e.ExitCode == 0 {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s (exit=%d)", e.Stage, e.Message, e.ExitCode)
}

func (e *StageError) Unwrap() error { return e.Err }

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Processor invokes the configured transcription command and parses its JSON
// output into segments.
type Processor struct {
	cfg    config.AudioConfig
	runner commandRunner
	logger *slog.Logger
}

func NewProcessor(cfg config.AudioConfig, logger *slog.Logger) *Processor {
	return &Processor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// outputFile is the transcript JSON the external command writes, named after
// the audio file.
type outputFile struct {
	Language string `json:"language"`
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Text    string  `json:"text"`
		Speaker string  `json:"speaker"`
		Words   []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Word  string  `json:"word"`
		} `json:"words"`
	} `json:"segments"`
}

// Run executes the transcription command and returns the parsed segments.
// Blocks until the command finishes or ctx is done.
func (p *Processor) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, &StageError{Stage: "transcribe", Message: "audio path is required"}
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		return Result{}, &StageError{
			Stage:   "transcribe",
			Message: fmt.Sprintf("cannot access audio file: %s", req.AudioPath),
			Err:     err,
		}
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{}, &StageError{
			Stage:   "transcribe",
			Message: fmt.Sprintf("cannot create output directory: %s", req.OutputDir),
			Err:     err,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	args := p.buildArgs(req)
	p.logger.Info("running transcription command",
		slog.String("command", p.cfg.Command),
		slog.String("audio", req.AudioPath))

	cmdResult, runErr := p.runner.Run(ctx, p.cfg.Command, args...)
	if runErr != nil {
		return Result{}, &StageError{
			Stage:    "transcribe",
			Message:  "transcription command failed",
			ExitCode: cmdResult.ExitCode,
			Stderr:   truncate(cmdResult.Stderr, 2048),
			Err:      runErr,
		}
	}

	jsonPath := filepath.Join(req.OutputDir, outputFileName(req.AudioPath))
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return Result{}, &StageError{
			Stage:   "transcribe",
			Message: "command completed but transcript JSON is missing",
			Err:     err,
		}
	}

	var out outputFile
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, &StageError{
			Stage:   "transcribe",
			Message: "transcript JSON is malformed",
			Err:     err,
		}
	}
	if len(out.Segments) == 0 {
		return Result{}, &StageError{Stage: "transcribe", Message: "transcript contains no segments"}
	}

	segments := make([]models.Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		seg := models.Segment{
			Start:   s.Start,
			End:     s.End,
			Text:    strings.TrimSpace(s.Text),
			Speaker: s.Speaker,
		}
		if req.WordTimestamps {
			for _, w := range s.Words {
				seg.Words = append(seg.Words, models.Word{Start: w.Start, End: w.End, Word: w.Word})
			}
		}
		segments = append(segments, seg)
	}

	return Result{Segments: segments, JSONPath: jsonPath, Language: out.Language}, nil
}

func (p *Processor) buildArgs(req Request) []string {
	args := []string{
		req.AudioPath,
		"--model", req.Model,
		"--compute_type", req.ComputeType,
		"--output_dir", req.OutputDir,
		"--output_format", "json",
		"--diarize",
	}
	if lang := normalizeLanguage(req.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if !req.WordTimestamps {
		args = append(args, "--no_align")
	}
	return args
}

// normalizeLanguage maps "auto" and empty to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// outputFileName is the JSON name the command derives from the audio name.
func outputFileName(audioPath string) string {
	base := filepath.Base(audioPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		name = "transcript"
	}
	return name + ".json"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
