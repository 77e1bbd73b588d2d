package config

import (
	"time"
)

// Analysis modes.
const (
	ModeFast     = "fast"
	ModeAdvanced = "advanced"
)

// Pipeline is the typed view of a job's merged configuration. Every field has
// a defined zero-or-default behavior so a job submitted with an empty override
// map still runs. Keys we do not recognize are preserved in Extra so callers
// can round-trip configs they did not author.
type Pipeline struct {
	InputAudio     string
	Mode           string
	WhisperModel   string
	ComputeType    string
	Language       string
	NameDetection  bool
	WordTimestamps bool

	// TranscriptPath overrides where the intermediate transcript JSON is
	// written, relative to the data root. Empty means a per-job default.
	TranscriptPath string

	// ExtraContext is prepended to analysis prompts when set.
	ExtraContext string

	// LLMModels maps an analysis task name to an ordered preference list of
	// model names. The first installed model wins.
	LLMModels map[string][]string

	// Timeout overrides in seconds; zero means use the server defaults.
	LLMTimeoutSecs      int
	LLMFinalTimeoutSecs int

	// DatabaseFile overrides the sqlite result-log file for this job,
	// relative to the data root. Ignored by the postgres backend.
	DatabaseFile string

	Extra map[string]any
}

// Map renders the pipeline settings as a plain map suitable for use as the
// base layer of a Merge with job overrides.
func (p Pipeline) Map() map[string]any {
	m := map[string]any{
		"input_audio":                    p.InputAudio,
		"mode":                           p.Mode,
		"whisper_model":                  p.WhisperModel,
		"compute_type":                   p.ComputeType,
		"language":                       p.Language,
		"speaker_name_detection_enabled": p.NameDetection,
		"word_timestamps_enabled":        p.WordTimestamps,
	}
	if p.TranscriptPath != "" {
		m["intermediate_transcript_path"] = p.TranscriptPath
	}
	if p.ExtraContext != "" {
		m["extra_context_prompt"] = p.ExtraContext
	}
	if len(p.LLMModels) > 0 {
		models := map[string]any{}
		for task, list := range p.LLMModels {
			names := make([]any, len(list))
			for i, n := range list {
				names[i] = n
			}
			models[task] = names
		}
		m["llm_models"] = models
	}
	if p.LLMTimeoutSecs > 0 {
		m["llm_default_timeout"] = p.LLMTimeoutSecs
	}
	if p.LLMFinalTimeoutSecs > 0 {
		m["llm_final_analysis_timeout"] = p.LLMFinalTimeoutSecs
	}
	if p.DatabaseFile != "" {
		m["database_filename"] = p.DatabaseFile
	}
	for k, v := range p.Extra {
		m[k] = v
	}
	return m
}

// PipelineFromMap projects a merged config map back onto the typed Pipeline.
// Values of the wrong type fall back to the zero value rather than erroring;
// validation of semantically required fields happens in the pipeline itself.
func PipelineFromMap(m map[string]any) Pipeline {
	known := map[string]bool{
		"input_audio": true, "mode": true, "whisper_model": true,
		"compute_type": true, "language": true,
		"speaker_name_detection_enabled": true, "word_timestamps_enabled": true,
		"intermediate_transcript_path": true, "extra_context_prompt": true,
		"llm_models": true, "llm_default_timeout": true,
		"llm_final_analysis_timeout": true, "database_filename": true,
	}

	p := Pipeline{
		InputAudio:          asString(m["input_audio"]),
		Mode:                asString(m["mode"]),
		WhisperModel:        asString(m["whisper_model"]),
		ComputeType:         asString(m["compute_type"]),
		Language:            asString(m["language"]),
		NameDetection:       asBool(m["speaker_name_detection_enabled"]),
		WordTimestamps:      asBool(m["word_timestamps_enabled"]),
		TranscriptPath:      asString(m["intermediate_transcript_path"]),
		ExtraContext:        asString(m["extra_context_prompt"]),
		LLMModels:           asModelLists(m["llm_models"]),
		LLMTimeoutSecs:      asInt(m["llm_default_timeout"]),
		LLMFinalTimeoutSecs: asInt(m["llm_final_analysis_timeout"]),
		DatabaseFile:        asString(m["database_filename"]),
	}
	if p.Mode == "" {
		p.Mode = ModeFast
	}

	for k, v := range m {
		if !known[k] {
			if p.Extra == nil {
				p.Extra = map[string]any{}
			}
			p.Extra[k] = v
		}
	}
	return p
}

// LLMTimeout returns the per-task LLM timeout, falling back to def when the
// job did not override it.
func (p Pipeline) LLMTimeout(def time.Duration) time.Duration {
	if p.LLMTimeoutSecs > 0 {
		return time.Duration(p.LLMTimeoutSecs) * time.Second
	}
	return def
}

// LLMFinalTimeout returns the final-analysis timeout with fallback.
func (p Pipeline) LLMFinalTimeout(def time.Duration) time.Duration {
	if p.LLMFinalTimeoutSecs > 0 {
		return time.Duration(p.LLMFinalTimeoutSecs) * time.Second
	}
	return def
}

// Merge deep-merges overrides into base and returns a new map. Neither input
// is modified. When both sides hold a map for the same key the maps are merged
// recursively; in every other case, including map-versus-scalar conflicts, the
// override value replaces the base value wholesale.
func Merge(base, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, ov := range overrides {
		bm, baseIsMap := out[k].(map[string]any)
		om, overrideIsMap := ov.(map[string]any)
		if baseIsMap && overrideIsMap {
			out[k] = Merge(bm, om)
			continue
		}
		out[k] = cloneValue(ov)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func asModelLists(v any) map[string][]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(m))
	for task, raw := range m {
		switch list := raw.(type) {
		case []any:
			names := make([]string, 0, len(list))
			for _, e := range list {
				if s, ok := e.(string); ok {
					names = append(names, s)
				}
			}
			out[task] = names
		case []string:
			out[task] = append([]string(nil), list...)
		case string:
			out[task] = []string{list}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
