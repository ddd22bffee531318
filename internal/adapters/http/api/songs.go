package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/songs"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

type songsResponse struct {
	Songs []model.ReferenceSong `json:"songs"`
}

type scoreRequest struct {
	Song  string            `json:"song"`
	Words []model.WordToken `json:"words"`
}

// SongsHandler serves the song catalog and scores sung transcripts.
type SongsHandler struct {
	deps SongDependencies
}

// NewSongsHandler creates a new songs handler.
func NewSongsHandler(deps SongDependencies) *SongsHandler {
	return &SongsHandler{deps: deps}
}

// HandleListSongs handles GET /api/songs.
func (h *SongsHandler) HandleListSongs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, songsResponse{Songs: h.deps.Songs()})
}

// HandleGetSong handles GET /api/songs/{key}.
func (h *SongsHandler) HandleGetSong(w http.ResponseWriter, r *http.Request) {
	const op = "api.song"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	song, err := h.deps.Song(r.PathValue("key"))
	if err != nil {
		writeSongError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// HandleScore handles POST /api/score.
func (h *SongsHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Song) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing song")))
		return
	}

	res, err := h.deps.Score(r.Context(), req.Song, req.Words)
	if err != nil {
		writeSongError(w, op, err)
		return
	}
	metrics.RecordScore(string(res.Method), res.OverallScore)
	writeJSON(w, http.StatusOK, res)
}

func writeSongError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, songs.ErrUnknownSong) {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
}
