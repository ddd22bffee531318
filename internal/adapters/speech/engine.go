// Package speech holds the speech recognition, synthesis and translation
// backends used by the server.
package speech

import (
	"context"
	"errors"
	"io"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
)

// Audio format expected by every Recognizer.
const (
	SampleRate     = 16000
	BytesPerSample = 2 // 16-bit little-endian mono
)

// Sentinel kinds for speech errors.
var (
	ErrNotConfigured = errors.New("speech backend not configured")
	ErrEmptyText     = errors.New("empty text")
)

// Recognizer turns a PCM stream into transcript events.
type Recognizer interface {
	// Recognize reads 16kHz 16-bit mono PCM from audio until EOF and sends
	// transcript events on the returned channel, which is closed once the
	// trailing audio has been processed. A failure is reported as a single
	// event with Error set, after which the channel is closed.
	Recognize(ctx context.Context, audio io.Reader, languageCode string) <-chan model.TranscriptEvent
}

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode string) ([]byte, error)
}

// Translation is the result of translating text to English.
type Translation struct {
	Text           string
	SourceLanguage string
}

// Translator translates text to English. sourceLanguage may be "auto".
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage string) (Translation, error)
}

// BytesToSeconds converts a PCM byte offset to seconds.
func BytesToSeconds(n int) float64 {
	return float64(n) / float64(SampleRate*BytesPerSample)
}
