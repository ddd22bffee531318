package api

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/scoring"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

type phraseResponse struct {
	Phrase string `json:"phrase"`
}

type phraseScoreRequest struct {
	Answer              string  `json:"answer"`
	Phrase              string  `json:"phrase"`
	ResponseTimeSeconds float64 `json:"response_time_seconds"`
}

func (p phraseScoreRequest) validate() error {
	switch {
	case strings.TrimSpace(p.Phrase) == "":
		return errors.New("missing phrase")
	case p.ResponseTimeSeconds < 0 || math.IsNaN(p.ResponseTimeSeconds) || math.IsInf(p.ResponseTimeSeconds, 0):
		return errors.New("response_time_seconds must be a non-negative number")
	}
	return nil
}

// PhraseHandler serves the language-learning routes.
type PhraseHandler struct {
	deps PhraseDependencies
}

// NewPhraseHandler creates a new phrase handler.
func NewPhraseHandler(deps PhraseDependencies) *PhraseHandler {
	return &PhraseHandler{deps: deps}
}

// HandleNewPhrase handles GET /api/new-phrase?language=xx-XX.
func (h *PhraseHandler) HandleNewPhrase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	lang := r.URL.Query().Get("language")
	if lang == "" {
		lang = "en-US"
	}
	writeJSON(w, http.StatusOK, phraseResponse{Phrase: h.deps.NewPhrase(lang)})
}

// HandlePhraseScore handles POST /api/phrase-score.
func (h *PhraseHandler) HandlePhraseScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.phrase_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req phraseScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	elapsed := time.Duration(req.ResponseTimeSeconds * float64(time.Second))
	res := scoring.ScorePhrase(req.Answer, req.Phrase, elapsed)
	metrics.RecordPhraseScore(res.RoundScore)
	writeJSON(w, http.StatusOK, res)
}
