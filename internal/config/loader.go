package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment names.
const (
	EnvPrefix     = "CHIRP_"
	EnvConfigFile = "CHIRP_CONFIG"

	envGoogleProject = "GOOGLE_CLOUD_PROJECT"
	envGoogleAPIKey  = "GOOGLE_API_KEY"
)

// listKeys are the Config fields read from the environment as lists.
var listKeys = map[string]struct{}{
	"cors_origins": {},
	"tts_prewarm":  {},
}

func splitList(v string) []string {
	out := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are named) into the environment. Variables already set win and missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, p, err)
		}
	}
	return nil
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CHIRP_CONFIG is set
//  3. env (prefix CHIRP_)
//
// GOOGLE_CLOUD_PROJECT and GOOGLE_API_KEY fill project_id and
// google_api_key when neither the file nor CHIRP_* set them.
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// CHIRP_AUDIO_QUEUE_SIZE -> audio_queue_size; keys stay flat. List
	// keys take comma-separated values.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if _, ok := listKeys[key]; ok {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.ProjectID == "" {
		cfg.ProjectID = os.Getenv(envGoogleProject)
	}
	if cfg.GoogleAPIKey == "" {
		cfg.GoogleAPIKey = os.Getenv(envGoogleAPIKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
