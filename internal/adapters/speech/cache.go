package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/phrases"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

const (
	// DefaultMaxTextChars caps text sent for synthesis.
	DefaultMaxTextChars = 500

	// DefaultBackendTimeout bounds a shared backend call.
	DefaultBackendTimeout = 30 * time.Second
)

// CachedSynthesizer stores synthesized MP3s on disk, keyed by language,
// voice and text. Concurrent misses for the same key share one backend call,
// which outlives the cancellation of the caller that started it. A failed
// cache write still returns the audio.
type CachedSynthesizer struct {
	next         Synthesizer
	dir          string
	maxTextChars int
	timeout      time.Duration
	log          logger.Logger
	sf           singleflight.Group
}

// CacheOption configures a CachedSynthesizer.
type CacheOption func(*CachedSynthesizer)

// WithMaxTextChars truncates longer texts before synthesis.
func WithMaxTextChars(n int) CacheOption {
	return func(c *CachedSynthesizer) {
		if n > 0 {
			c.maxTextChars = n
		}
	}
}

// WithBackendTimeout bounds each shared backend call.
func WithBackendTimeout(d time.Duration) CacheOption {
	return func(c *CachedSynthesizer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewCachedSynthesizer wraps next with a disk cache in dir.
func NewCachedSynthesizer(next Synthesizer, dir string, opts ...CacheOption) (*CachedSynthesizer, error) {
	if next == nil {
		return nil, ErrNotConfigured
	}
	if dir == "" {
		return nil, errors.New("tts cache dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tts cache dir: %w", err)
	}
	c := &CachedSynthesizer{
		next:         next,
		dir:          dir,
		maxTextChars: DefaultMaxTextChars,
		timeout:      DefaultBackendTimeout,
		log:          logger.Named("tts_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Synthesize returns cached audio or asks the wrapped synthesizer.
func (c *CachedSynthesizer) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if r := []rune(text); len(r) > c.maxTextChars {
		text = string(r[:c.maxTextChars])
	}
	metrics.RecordTTSRequest(languageCode)

	key := CacheKey(languageCode, phrases.Voice(languageCode), text)
	path := filepath.Join(c.dir, key+".mp3")

	if b, err := os.ReadFile(path); err == nil {
		metrics.RecordTTSCacheHit()
		return b, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		if b, err := os.ReadFile(path); err == nil {
			metrics.RecordTTSCacheHit()
			return b, nil
		}
		metrics.RecordTTSCacheMiss()

		// waiters share this call, so one caller going away must not fail it
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		audio, err := c.next.Synthesize(callCtx, text, languageCode)
		if err != nil {
			return nil, err
		}

		if err := c.store(path, audio); err != nil {
			metrics.RecordErrorByComponent("tts", "cache_write")
			c.log.Warn(ctx, "tts cache write failed", logger.String("path", path), logger.Error(err))
		}
		return audio, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *CachedSynthesizer) store(path string, audio []byte) error {
	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, audio, 0o644); err != nil {
		return fmt.Errorf("writing tts cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing tts cache: %w", err)
	}
	return nil
}

// CacheKey is the hex sha256 of language, voice and text.
func CacheKey(languageCode, voice, text string) string {
	sum := sha256.Sum256([]byte(languageCode + "|" + voice + "|" + text))
	return hex.EncodeToString(sum[:])
}
