package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/speech"
)

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
}

type translateResponse struct {
	Original       string `json:"original"`
	Translated     string `json:"translated"`
	SourceLanguage string `json:"source_language"`
}

// SpeechHandler proxies text-to-speech and translation. Both routes answer
// errors with an {error} body.
type SpeechHandler struct {
	deps SpeechDependencies
}

// NewSpeechHandler creates a new speech handler.
func NewSpeechHandler(deps SpeechDependencies) *SpeechHandler {
	return &SpeechHandler{deps: deps}
}

// HandleSynthesize handles POST /api/synthesize and returns MP3 bytes.
func (h *SpeechHandler) HandleSynthesize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req synthesizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeLegacyError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeLegacyError(w, http.StatusBadRequest, "No text provided")
		return
	}
	if req.Language == "" {
		req.Language = "en-US"
	}

	audio, err := h.deps.Synthesize(r.Context(), req.Text, req.Language)
	switch {
	case errors.Is(err, speech.ErrNotConfigured):
		writeLegacyError(w, http.StatusInternalServerError, "TTS Client not initialized")
		return
	case err != nil:
		writeLegacyError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// HandleTranslate handles POST /api/translate. The target is always English.
func (h *SpeechHandler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req translateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeLegacyError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeLegacyError(w, http.StatusBadRequest, "No text provided")
		return
	}
	if req.SourceLanguage == "" {
		req.SourceLanguage = "auto"
	}

	tr, err := h.deps.Translate(r.Context(), req.Text, req.SourceLanguage)
	switch {
	case errors.Is(err, speech.ErrNotConfigured):
		writeLegacyError(w, http.StatusInternalServerError, "Translation client not initialized")
		return
	case err != nil:
		writeLegacyError(w, http.StatusInternalServerError, "Translation failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{
		Original:       req.Text,
		Translated:     tr.Text,
		SourceLanguage: tr.SourceLanguage,
	})
}
