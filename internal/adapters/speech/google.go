package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/phrases"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

// Default Google REST endpoints.
const (
	DefaultSpeechURL    = "https://speech.googleapis.com/v1/speech:recognize"
	DefaultTTSURL       = "https://texttospeech.googleapis.com/v1/text:synthesize"
	DefaultTranslateURL = "https://translation.googleapis.com/language/translate/v2"
)

// GoogleConfig configures the Google REST backends.
type GoogleConfig struct {
	APIKey       string
	SpeechURL    string
	TTSURL       string
	TranslateURL string
	Model        string // recognition model, empty for the API default
	Timeout      time.Duration
	VAD          VADConfig
	HTTPClient   *http.Client
}

func (c GoogleConfig) withDefaults() GoogleConfig {
	if c.SpeechURL == "" {
		c.SpeechURL = DefaultSpeechURL
	}
	if c.TTSURL == "" {
		c.TTSURL = DefaultTTSURL
	}
	if c.TranslateURL == "" {
		c.TranslateURL = DefaultTranslateURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.VAD.SampleRate == 0 {
		c.VAD = DefaultVADConfig()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

func keyed(endpoint, apiKey string) string {
	if apiKey == "" {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "key=" + url.QueryEscape(apiKey)
}

type recognizeRequest struct {
	Config recognizeConfig `json:"config"`
	Audio  recognizeAudio  `json:"audio"`
}

type recognizeConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz"`
	AudioChannelCount          int    `json:"audioChannelCount"`
	LanguageCode               string `json:"languageCode"`
	Model                      string `json:"model,omitempty"`
	EnableWordTimeOffsets      bool   `json:"enableWordTimeOffsets"`
	EnableWordConfidence       bool   `json:"enableWordConfidence"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

type recognizeAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				StartTime  string  `json:"startTime"`
				EndTime    string  `json:"endTime"`
				Word       string  `json:"word"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"results"`
}

// GoogleRecognizer implements Recognizer with the Speech-to-Text v1 REST API.
// Each VAD utterance is sent as one synchronous recognize call.
type GoogleRecognizer struct {
	cfg GoogleConfig
	log logger.Logger
}

// NewGoogleRecognizer creates a recognizer. It fails with ErrNotConfigured
// when no API key is set.
func NewGoogleRecognizer(cfg GoogleConfig) (*GoogleRecognizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("google speech: %w", ErrNotConfigured)
	}
	return &GoogleRecognizer{cfg: cfg.withDefaults(), log: logger.Named("speech")}, nil
}

// Recognize implements Recognizer.
func (g *GoogleRecognizer) Recognize(ctx context.Context, audio io.Reader, languageCode string) <-chan model.TranscriptEvent {
	out := make(chan model.TranscriptEvent, 8)

	go func() {
		defer close(out)

		send := func(ev model.TranscriptEvent) error {
			select {
			case out <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := SegmentUtterances(ctx, audio, g.cfg.VAD, DefaultMaxUtteranceBytes, func(ctx context.Context, u Utterance) error {
			ev, err := g.recognizeUtterance(ctx, u, languageCode)
			if err != nil {
				return err
			}
			if ev.Transcript == "" && len(ev.Words) == 0 {
				return nil
			}
			return send(ev)
		})
		if err != nil && ctx.Err() == nil {
			g.log.Error(ctx, "recognition failed", logger.String("language", languageCode), logger.Error(err))
			metrics.RecordErrorByComponent("speech", "recognize")
			_ = send(model.TranscriptEvent{Error: err.Error()})
		}
	}()

	return out
}

func (g *GoogleRecognizer) recognizeUtterance(ctx context.Context, u Utterance, languageCode string) (model.TranscriptEvent, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRecognizeLatency(float64(time.Since(start).Milliseconds()))
	}()

	req := recognizeRequest{
		Config: recognizeConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            g.cfg.VAD.SampleRate,
			AudioChannelCount:          1,
			LanguageCode:               languageCode,
			Model:                      g.cfg.Model,
			EnableWordTimeOffsets:      true,
			EnableWordConfidence:       true,
			EnableAutomaticPunctuation: true,
		},
		Audio: recognizeAudio{Content: base64.StdEncoding.EncodeToString(u.PCM)},
	}

	var resp recognizeResponse
	if err := doJSON(ctx, g.cfg.HTTPClient, keyed(g.cfg.SpeechURL, g.cfg.APIKey), req, &resp); err != nil {
		return model.TranscriptEvent{}, fmt.Errorf("google speech: %w", err)
	}

	offset := u.OffsetSeconds()
	ev := model.TranscriptEvent{IsFinal: true, Words: []model.WordToken{}}
	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if t := strings.TrimSpace(alt.Transcript); t != "" {
			parts = append(parts, t)
		}
		for _, w := range alt.Words {
			ev.Words = append(ev.Words, model.WordToken{
				Word:       w.Word,
				StartTime:  offset + parseOffset(w.StartTime),
				EndTime:    offset + parseOffset(w.EndTime),
				Confidence: w.Confidence,
			})
		}
	}
	ev.Transcript = strings.Join(parts, " ")
	return ev, nil
}

// parseOffset parses a protobuf JSON duration such as "1.500s".
func parseOffset(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d.Seconds()
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// GoogleSynthesizer implements Synthesizer with the Text-to-Speech v1 REST API.
type GoogleSynthesizer struct {
	cfg GoogleConfig
}

// NewGoogleSynthesizer creates a synthesizer.
func NewGoogleSynthesizer(cfg GoogleConfig) (*GoogleSynthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("google tts: %w", ErrNotConfigured)
	}
	return &GoogleSynthesizer{cfg: cfg.withDefaults()}, nil
}

// Synthesize returns MP3 audio for text spoken by the language's voice.
func (g *GoogleSynthesizer) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()
	defer func() {
		metrics.RecordTTSLatency(float64(time.Since(start).Milliseconds()))
	}()

	var req synthesizeRequest
	req.Input.Text = text
	req.Voice.LanguageCode = languageCode
	req.Voice.Name = phrases.Voice(languageCode)
	req.AudioConfig.AudioEncoding = "MP3"

	var resp synthesizeResponse
	if err := doJSON(ctx, g.cfg.HTTPClient, keyed(g.cfg.TTSURL, g.cfg.APIKey), req, &resp); err != nil {
		return nil, fmt.Errorf("google tts: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("google tts decode audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("google tts: empty audio response")
	}
	return audio, nil
}

type translateRequest struct {
	Q      []string `json:"q"`
	Target string   `json:"target"`
	Source string   `json:"source,omitempty"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

// GoogleTranslator implements Translator with the Translation v2 REST API.
type GoogleTranslator struct {
	cfg GoogleConfig
}

// NewGoogleTranslator creates a translator.
func NewGoogleTranslator(cfg GoogleConfig) (*GoogleTranslator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("google translate: %w", ErrNotConfigured)
	}
	return &GoogleTranslator{cfg: cfg.withDefaults()}, nil
}

// Translate translates text to English. A source of "auto" or "" lets the
// service detect the language. Region suffixes such as "-ES" are dropped.
func (g *GoogleTranslator) Translate(ctx context.Context, text, sourceLanguage string) (Translation, error) {
	if strings.TrimSpace(text) == "" {
		return Translation{}, ErrEmptyText
	}

	req := translateRequest{Q: []string{text}, Target: "en", Format: "text"}
	if src := translateSource(sourceLanguage); src != "" {
		req.Source = src
	}

	var resp translateResponse
	if err := doJSON(ctx, g.cfg.HTTPClient, keyed(g.cfg.TranslateURL, g.cfg.APIKey), req, &resp); err != nil {
		return Translation{}, fmt.Errorf("google translate: %w", err)
	}
	if len(resp.Data.Translations) == 0 {
		return Translation{}, fmt.Errorf("google translate: no translations returned")
	}

	t := resp.Data.Translations[0]
	out := Translation{Text: t.TranslatedText, SourceLanguage: t.DetectedSourceLanguage}
	if out.SourceLanguage == "" {
		out.SourceLanguage = sourceLanguage
	}
	return out, nil
}

func translateSource(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	// v2 accepts ISO-639 codes, except for a few regional Chinese variants
	if base, _, ok := strings.Cut(lang, "-"); ok && !strings.EqualFold(base, "zh") {
		return strings.ToLower(base)
	}
	return lang
}
