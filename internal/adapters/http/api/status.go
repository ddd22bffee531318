package api

import "net/http"

type statusResponse struct {
	Status          string `json:"status"`
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	TTSClient       bool   `json:"tts_client"`
	SpeechClient    bool   `json:"speech_client"`
	TranslateClient bool   `json:"translate_client"`
}

// StatusHandler reports which backends are ready.
type StatusHandler struct {
	deps StatusDependencies
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps StatusDependencies) *StatusHandler {
	return &StatusHandler{deps: deps}
}

// HandleStatus handles GET /api/status.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	st := h.deps.Status(r.Context())
	writeJSON(w, http.StatusOK, statusResponse{
		Status:          "ok",
		ProjectID:       st.ProjectID,
		Location:        st.Location,
		TTSClient:       st.TTSReady,
		SpeechClient:    st.SpeechReady,
		TranslateClient: st.TranslateReady,
	})
}
