package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/repository"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/dedupe"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/scoring"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/types"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

// Submission outcomes recorded in metrics.
const (
	outcomeSaved        = "saved"
	outcomeNotQualified = "not_qualified"
	outcomeDuplicate    = "duplicate"
)

type boardResponse struct {
	Board   string  `json:"board"`
	Entries []Entry `json:"entries"`
}

type submitRequest struct {
	Name         string `json:"name"`
	Score        *int   `json:"score"`
	SubmissionID string `json:"submission_id,omitempty"`
}

type submitResponse struct {
	Saved     bool    `json:"saved"`
	Duplicate bool    `json:"duplicate"`
	Entries   []Entry `json:"entries"`
}

type qualifiesResponse struct {
	Qualifies bool `json:"qualifies"`
}

// HighScoreHandler serves the high-score boards.
type HighScoreHandler struct {
	deps HighScoreDependencies
}

// NewHighScoreHandler creates a new high-score handler.
func NewHighScoreHandler(deps HighScoreDependencies) *HighScoreHandler {
	return &HighScoreHandler{deps: deps}
}

// HandleBoard handles GET, POST and DELETE on /api/highscores/{board}.
func (h *HighScoreHandler) HandleBoard(w http.ResponseWriter, r *http.Request) {
	const op = "api.highscores"
	board, err := repository.ParseBoard(r.PathValue("board"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.list(w, r, board)
	case http.MethodPost:
		h.submit(w, r, board)
	case http.MethodDelete:
		if err := h.deps.ResetHighScores(r.Context(), board); err != nil {
			writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

// HandleQualifies handles GET /api/highscores/{board}/qualifies?score=N.
func (h *HighScoreHandler) HandleQualifies(w http.ResponseWriter, r *http.Request) {
	const op = "api.highscores_qualifies"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	board, err := repository.ParseBoard(r.PathValue("board"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	}
	score, err := strconv.Atoi(r.URL.Query().Get("score"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("score must be an integer")))
		return
	}
	ok, err := h.deps.QualifiesHighScore(r.Context(), board, score)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, qualifiesResponse{Qualifies: ok})
}

func (h *HighScoreHandler) list(w http.ResponseWriter, r *http.Request, board repository.Board) {
	const op = "api.highscores_list"
	entries, err := h.deps.HighScores(r.Context(), board)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, boardResponse{Board: string(board), Entries: types.Rank(entries)})
}

func (h *HighScoreHandler) submit(w http.ResponseWriter, r *http.Request, board repository.Board) {
	const op = "api.highscores_submit"
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Score == nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing score")))
		return
	}
	if *req.Score < 0 || *req.Score > scoring.MaxScore {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, fmt.Errorf("score must be between 0 and %d", scoring.MaxScore)))
		return
	}

	ctx := r.Context()
	key := dedupe.SubmissionKey(string(board), req.SubmissionID)
	if key != "" && h.deps.SeenAndRecord(ctx, key) {
		metrics.RecordHighScoreSubmission(string(board), outcomeDuplicate)
		entries, err := h.deps.HighScores(ctx, board)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, submitResponse{Duplicate: true, Entries: types.Rank(entries)})
		return
	}

	saved, entries, err := h.deps.SubmitHighScore(ctx, board, req.Name, *req.Score)
	if err != nil {
		if key != "" {
			h.deps.Unrecord(ctx, key)
		}
		if errors.Is(err, repository.ErrEmptyName) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}

	outcome := outcomeNotQualified
	if saved {
		outcome = outcomeSaved
	}
	metrics.RecordHighScoreSubmission(string(board), outcome)
	writeJSON(w, http.StatusOK, submitResponse{Saved: saved, Entries: types.Rank(entries)})
}
