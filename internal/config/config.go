// Package config defines service configuration and its loading.
//
// Values are layered: defaults from New, then an optional YAML file named
// by CHIRP_CONFIG, then CHIRP_* environment variables.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite file backing the high-score boards.
	// ":memory:" keeps scores for the life of the process only.
	DBPath string `koanf:"db_path"`

	// TTSCacheDir holds synthesized MP3 files. Empty disables the cache.
	TTSCacheDir string `koanf:"tts_cache_dir"`

	// TTSMaxChars caps the text length accepted for synthesis.
	TTSMaxChars int `koanf:"tts_max_chars"`

	// TTSPrewarm lists languages whose phrases are synthesized into the
	// cache at startup.
	TTSPrewarm []string `koanf:"tts_prewarm"`

	// TTSPrewarmWorkers bounds concurrent prewarm requests.
	TTSPrewarmWorkers int `koanf:"tts_prewarm_workers"`

	// GoogleAPIKey authenticates the Speech, Text-to-Speech and Translate
	// REST calls. Empty leaves those backends unconfigured.
	GoogleAPIKey string `koanf:"google_api_key"`

	// ProjectID and Location are reported by /api/status.
	ProjectID string `koanf:"project_id"`
	Location  string `koanf:"location"`

	// Endpoint overrides; empty uses the public Google endpoints.
	SpeechURL    string `koanf:"speech_url"`
	TTSURL       string `koanf:"tts_url"`
	TranslateURL string `koanf:"translate_url"`

	// SpeechModel selects the recognition model, e.g. "latest_long".
	SpeechModel string `koanf:"speech_model"`

	// VADEnergyThreshold is the RMS level of 16-bit PCM counted as voice.
	// Lower it for quiet microphones.
	VADEnergyThreshold float64 `koanf:"vad_energy_threshold"`

	// VADSilenceMs is how long the voice must stay below the threshold
	// before an utterance is sent for recognition.
	VADSilenceMs int `koanf:"vad_silence_ms"`

	// RequestTimeout bounds each outbound Google call.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// HighScoreLimit is the number of entries kept per board.
	HighScoreLimit int `koanf:"highscore_limit"`

	// AudioQueueSize bounds the PCM frames buffered per listen session.
	AudioQueueSize int `koanf:"audio_queue_size"`

	// DedupeSize sets how many submission ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// CORSOrigins lists origins allowed to call the API. "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":8080",
		DBPath:             "data/chirp.db",
		TTSCacheDir:        "data/tts-cache",
		TTSMaxChars:        500,
		TTSPrewarmWorkers:  2,
		Location:           "us-central1",
		SpeechModel:        "latest_long",
		VADEnergyThreshold: 500,
		VADSilenceMs:       700,
		RequestTimeout:     30 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		HighScoreLimit:     5,
		AudioQueueSize:     512,
		DedupeSize:         10_000,
		CORSOrigins:        []string{"*"},
	}
}

// Validate checks the values that the server cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.HighScoreLimit <= 0:
		return fmt.Errorf("%w: highscore_limit must be positive", ErrInvalidConfig)
	case c.AudioQueueSize <= 0:
		return fmt.Errorf("%w: audio_queue_size must be positive", ErrInvalidConfig)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	case c.VADEnergyThreshold <= 0:
		return fmt.Errorf("%w: vad_energy_threshold must be positive", ErrInvalidConfig)
	case c.VADSilenceMs <= 0:
		return fmt.Errorf("%w: vad_silence_ms must be positive", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	return nil
}

// SpeechEnabled reports whether the Google backends can be built.
func (c *Config) SpeechEnabled() bool {
	return c.GoogleAPIKey != ""
}
