package models

// Word is an optional word-level timing record inside a segment, present only
// when word timestamps were enabled for the run.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Segment is a time-bounded, speaker-tagged unit of transcribed text.
// Speaker carries the machine-assigned diarization id (e.g. "SPEAKER_00");
// SpeakerName is filled in by the finalize phase after human review.
type Segment struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Speaker     string  `json:"speaker,omitempty"`
	Text        string  `json:"text"`
	Words       []Word  `json:"words,omitempty"`
	SpeakerName string  `json:"speaker_name,omitempty"`
}

// ProposedName is one entry of the name-detection output: the detected display
// name (nil when the detector found no confident name) plus the transcript
// line indices that support it.
type ProposedName struct {
	Name     *string `json:"name"`
	Evidence []int   `json:"reasoning_indices"`
}

// ProposedMap maps diarization speaker ids to detector proposals.
type ProposedMap map[string]ProposedName

// ContextSnippets maps a transcript line index to the excerpt that was offered
// to the LLM as context around that line.
type ContextSnippets map[int]string

// SpeakerMap is the human-approved mapping from diarization speaker ids to
// display names. A nil value means "no name assigned, fall back to the id".
type SpeakerMap map[string]*string
