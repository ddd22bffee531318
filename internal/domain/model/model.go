// Package model contains domain models passed between layers.
package model

// WordToken is a single recognized or reference word with its timing.
// Times are in seconds; JSON keys follow the transcript wire format.
type WordToken struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
}

// ReferenceSong is a refrain the user sings against.
type ReferenceSong struct {
	Key             string      `json:"key" yaml:"key"`
	Title           string      `json:"title" yaml:"title"`
	Language        string      `json:"language" yaml:"language"`
	DurationSeconds float64     `json:"durationSeconds" yaml:"time"`
	Text            string      `json:"text" yaml:"text"`
	Words           []WordToken `json:"words,omitempty" yaml:"-"`
}

// HasTimedWords reports whether the song carries word-level reference timing.
func (s ReferenceSong) HasTimedWords() bool {
	return len(s.Words) > 0
}

// TranscriptEvent is a single message sent by the server on the listen socket.
// Either Error is set, or the transcript fields are.
type TranscriptEvent struct {
	IsFinal    bool        `json:"isFinal"`
	Transcript string      `json:"transcript"`
	Words      []WordToken `json:"words"`
	Error      string      `json:"error,omitempty"`
}

// HighScoreEntry is one row of a persisted high-score board.
type HighScoreEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}
