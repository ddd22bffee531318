// Package client talks to a running chirp server: the JSON API over HTTP and
// the transcription socket over websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/scoring"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/types"
)

const maxResponseBytes = 16 << 20

// ServerStatus mirrors GET /api/status.
type ServerStatus struct {
	Status          string `json:"status"`
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	TTSClient       bool   `json:"tts_client"`
	SpeechClient    bool   `json:"speech_client"`
	TranslateClient bool   `json:"translate_client"`
}

// Translation mirrors POST /api/translate.
type Translation struct {
	Original       string `json:"original"`
	Translated     string `json:"translated"`
	SourceLanguage string `json:"source_language"`
}

// Submission is the outcome of a high-score POST.
type Submission struct {
	Saved     bool          `json:"saved"`
	Duplicate bool          `json:"duplicate"`
	Entries   []types.Entry `json:"entries"`
}

// API is a client for the chirp HTTP API.
type API struct {
	baseURL string
	http    *http.Client
}

// New creates an API client for the server at baseURL.
func New(baseURL string, opts ...Option) *API {
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BaseURL returns the server address the client was built with.
func (a *API) BaseURL() string { return a.baseURL }

// Status fetches which backends the server has configured.
func (a *API) Status(ctx context.Context) (ServerStatus, error) {
	var out ServerStatus
	err := a.getJSON(ctx, "/api/status", nil, &out)
	return out, err
}

// NewPhrase asks for a random practice phrase in language.
func (a *API) NewPhrase(ctx context.Context, language string) (string, error) {
	q := url.Values{}
	if language != "" {
		q.Set("language", language)
	}
	var out struct {
		Phrase string `json:"phrase"`
	}
	if err := a.getJSON(ctx, "/api/new-phrase", q, &out); err != nil {
		return "", err
	}
	return out.Phrase, nil
}

// Synthesize returns MP3 audio for text.
func (a *API) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	body := map[string]string{"text": text, "language": language}
	return a.do(ctx, http.MethodPost, "/api/synthesize", nil, body)
}

// Translate translates text to English.
func (a *API) Translate(ctx context.Context, text, sourceLanguage string) (Translation, error) {
	var out Translation
	body := map[string]string{"text": text, "source_language": sourceLanguage}
	err := a.postJSON(ctx, "/api/translate", body, &out)
	return out, err
}

// Songs lists the reference songs.
func (a *API) Songs(ctx context.Context) ([]model.ReferenceSong, error) {
	var out struct {
		Songs []model.ReferenceSong `json:"songs"`
	}
	if err := a.getJSON(ctx, "/api/songs", nil, &out); err != nil {
		return nil, err
	}
	return out.Songs, nil
}

// Song fetches one reference song by key.
func (a *API) Song(ctx context.Context, key string) (model.ReferenceSong, error) {
	var out model.ReferenceSong
	err := a.getJSON(ctx, "/api/songs/"+url.PathEscape(key), nil, &out)
	return out, err
}

// Score scores recognized words against a song on the server.
func (a *API) Score(ctx context.Context, song string, words []model.WordToken) (scoring.Result, error) {
	var out scoring.Result
	if words == nil {
		words = []model.WordToken{}
	}
	body := map[string]any{"song": song, "words": words}
	err := a.postJSON(ctx, "/api/score", body, &out)
	return out, err
}

// PhraseScore scores a typed answer for a language-learning round.
func (a *API) PhraseScore(ctx context.Context, answer, phrase string, responseTime time.Duration) (scoring.PhraseResult, error) {
	var out scoring.PhraseResult
	body := map[string]any{
		"answer":                answer,
		"phrase":                phrase,
		"response_time_seconds": responseTime.Seconds(),
	}
	err := a.postJSON(ctx, "/api/phrase-score", body, &out)
	return out, err
}

// HighScores returns the ranked entries of a board.
func (a *API) HighScores(ctx context.Context, board string) ([]types.Entry, error) {
	var out struct {
		Entries []types.Entry `json:"entries"`
	}
	if err := a.getJSON(ctx, boardPath(board), nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Qualifies reports whether score would make it onto the board.
func (a *API) Qualifies(ctx context.Context, board string, score int) (bool, error) {
	q := url.Values{}
	q.Set("score", strconv.Itoa(score))
	var out struct {
		Qualifies bool `json:"qualifies"`
	}
	if err := a.getJSON(ctx, boardPath(board)+"/qualifies", q, &out); err != nil {
		return false, err
	}
	return out.Qualifies, nil
}

// SubmitHighScore posts a score. A non-empty submissionID makes retries of the
// same submission idempotent.
func (a *API) SubmitHighScore(ctx context.Context, board, name string, score int, submissionID string) (Submission, error) {
	var out Submission
	body := map[string]any{"name": name, "score": score}
	if submissionID != "" {
		body["submission_id"] = submissionID
	}
	err := a.postJSON(ctx, boardPath(board), body, &out)
	return out, err
}

// ResetHighScores clears a board.
func (a *API) ResetHighScores(ctx context.Context, board string) error {
	_, err := a.do(ctx, http.MethodDelete, boardPath(board), nil, nil)
	return err
}

func boardPath(board string) string {
	return "/api/highscores/" + url.PathEscape(board)
}

func (a *API) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	data, err := a.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	return decode(path, data, dst)
}

func (a *API) postJSON(ctx context.Context, path string, body, dst any) error {
	data, err := a.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	return decode(path, data, dst)
}

func decode(path string, data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// do performs a request and returns the response body of a 2xx answer.
func (a *API) do(ctx context.Context, method, path string, q url.Values, body any) ([]byte, error) {
	target := a.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rdr = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, data)
	}
	return data, nil
}
