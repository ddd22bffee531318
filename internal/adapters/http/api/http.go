// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/repository"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/speech"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/dedupe"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/scoring"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/types"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Status describes which backends are configured.
type Status struct {
	ProjectID      string
	Location       string
	TTSReady       bool
	SpeechReady    bool
	TranslateReady bool
}

// StatusDependencies reports server configuration.
type StatusDependencies interface {
	Status(ctx context.Context) Status
}

// PhraseDependencies picks practice phrases.
type PhraseDependencies interface {
	NewPhrase(language string) string
}

// SpeechDependencies proxies synthesis and translation.
type SpeechDependencies interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
	Translate(ctx context.Context, text, sourceLanguage string) (speech.Translation, error)
}

// SongDependencies exposes the song catalog and scoring.
type SongDependencies interface {
	Songs() []model.ReferenceSong
	Song(key string) (model.ReferenceSong, error)
	Score(ctx context.Context, songKey string, words []model.WordToken) (scoring.Result, error)
}

// HighScoreDependencies reads and writes the high-score boards.
type HighScoreDependencies interface {
	dedupe.Deduper

	HighScores(ctx context.Context, board repository.Board) ([]model.HighScoreEntry, error)
	QualifiesHighScore(ctx context.Context, board repository.Board, score int) (bool, error)
	SubmitHighScore(ctx context.Context, board repository.Board, name string, score int) (bool, []model.HighScoreEntry, error)
	ResetHighScores(ctx context.Context, board repository.Board) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatusDependencies
	PhraseDependencies
	SpeechDependencies
	SongDependencies
	HighScoreDependencies
}

// Entry mirrors the ranked row returned by high-score queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	statusHandler    *StatusHandler
	phraseHandler    *PhraseHandler
	speechHandler    *SpeechHandler
	songsHandler     *SongsHandler
	highScoreHandler *HighScoreHandler
	corsOrigins      []string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCORSOrigins sets the origins allowed to call the API from a browser.
// An empty list or "*" allows any origin.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		statusHandler:    NewStatusHandler(deps),
		phraseHandler:    NewPhraseHandler(deps),
		speechHandler:    NewSpeechHandler(deps),
		songsHandler:     NewSongsHandler(deps),
		highScoreHandler: NewHighScoreHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	cors := CORSMiddleware(s.corsOrigins)
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, cors(MetricsMiddleware(h, endpoint)))
	}

	route("/healthz", "healthz", s.healthHandler.HandleHealth)
	route("/stats", "stats", s.statsHandler.HandleStats)
	route("/api/status", "status", s.statusHandler.HandleStatus)
	route("/api/new-phrase", "new_phrase", s.phraseHandler.HandleNewPhrase)
	route("/api/phrase-score", "phrase_score", s.phraseHandler.HandlePhraseScore)
	route("/api/synthesize", "synthesize", s.speechHandler.HandleSynthesize)
	route("/api/translate", "translate", s.speechHandler.HandleTranslate)
	route("/api/songs", "songs", s.songsHandler.HandleListSongs)
	route("/api/songs/{key}", "song", s.songsHandler.HandleGetSong)
	route("/api/score", "score", s.songsHandler.HandleScore)
	route("/api/highscores/{board}", "highscores", s.highScoreHandler.HandleBoard)
	route("/api/highscores/{board}/qualifies", "highscores_qualifies", s.highScoreHandler.HandleQualifies)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// legacyErrorResponse is the {error} body used by the routes the browser
// page already calls.
type legacyErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeLegacyError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, legacyErrorResponse{Error: msg})
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
