package models

// Result is the structured payload attached to a job on successful
// completion. Path fields reference artifacts that actually exist on disk at
// finalize time; text fields carry inline copies of the analysis output so
// the result log can store them without re-reading files.
type Result struct {
	IntermediateTranscriptPath *string `json:"intermediate_transcript_path"`
	FinalTranscriptPath        *string `json:"final_transcript_json_path"`
	HTMLTranscriptPath         *string `json:"html_transcript_path"`
	SummaryPath                *string `json:"summary_path"`
	AdvancedAnalysisPath       *string `json:"advanced_analysis_path"`

	Summary       *string `json:"summary_content"`
	Intent        *string `json:"intent_result"`
	Actions       *string `json:"actions_result"`
	Emotion       *string `json:"emotion_result"`
	Questions     *string `json:"questions_result"`
	Legal         *string `json:"legal_result"`
	FinalAnalysis *string `json:"final_analysis_result"`

	FinalSegments []Segment  `json:"final_transcript_segments"`
	SpeakerMap    SpeakerMap `json:"speaker_mapping_used"`
}
