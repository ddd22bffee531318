// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/http/api"
	workerpool "github.com/dazdaz/chirp-demo-enhanced/internal/adapters/mq/worker"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/repository"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/speech"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/dedupe"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/phrases"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/scoring"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/songs"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

// ErrNotStarted is returned by store-backed calls before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the karaoke server.
type Service struct {
	mu sync.RWMutex

	// Backends; nil means not configured.
	recognizer  speech.Recognizer
	synthesizer speech.Synthesizer
	translator  speech.Translator

	// Core components
	kv         repository.KV
	highScores *repository.HighScores
	deduper    dedupe.Deduper
	phrases    *phrases.Catalog
	songs      *songs.Catalog
	calculator *scoring.Calculator
	pool       *workerpool.Pool

	// Configuration
	projectID      string
	location       string
	highScoreLimit int
	dedupeSize     int
	prewarmLangs   []string
	prewarmWorkers int

	// State
	started   bool
	startedAt time.Time
	served    atomic.Int64
	scored    atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRecognizer sets the speech-to-text backend.
func WithRecognizer(r speech.Recognizer) Option {
	return func(s *Service) { s.recognizer = r }
}

// WithSynthesizer sets the text-to-speech backend.
func WithSynthesizer(syn speech.Synthesizer) Option {
	return func(s *Service) { s.synthesizer = syn }
}

// WithTranslator sets the translation backend.
func WithTranslator(t speech.Translator) Option {
	return func(s *Service) { s.translator = t }
}

// WithKV sets the store behind the high-score boards. The service closes
// it on Stop. Defaults to an in-memory store.
func WithKV(kv repository.KV) Option {
	return func(s *Service) {
		if kv != nil {
			s.kv = kv
		}
	}
}

// WithHighScoreLimit sets the number of entries kept per board.
func WithHighScoreLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.highScoreLimit = n
		}
	}
}

// WithDedupeSize sets the size of the submission id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithProject sets the values reported by Status.
func WithProject(projectID, location string) Option {
	return func(s *Service) {
		s.projectID = projectID
		s.location = location
	}
}

// WithPhrases replaces the phrase catalog.
func WithPhrases(c *phrases.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.phrases = c
		}
	}
}

// WithSongs replaces the song catalog.
func WithSongs(c *songs.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.songs = c
		}
	}
}

// WithCalculator replaces the score calculator.
func WithCalculator(c *scoring.Calculator) Option {
	return func(s *Service) {
		if c != nil {
			s.calculator = c
		}
	}
}

// WithTTSPrewarm synthesizes every phrase of the given languages in the
// background after Start, using workers goroutines.
func WithTTSPrewarm(languages []string, workers int) Option {
	return func(s *Service) {
		s.prewarmLangs = languages
		if workers > 0 {
			s.prewarmWorkers = workers
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		phrases:        phrases.New(),
		songs:          songs.Default(),
		calculator:     scoring.NewCalculator(),
		highScoreLimit: repository.DefaultLimit,
		dedupeSize:     dedupe.DefaultMaxSize,
		prewarmWorkers: 2,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the store and background workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.kv == nil {
		s.kv = repository.NewMemoryKV()
	}

	s.highScores = repository.NewHighScores(s.kv,
		repository.WithLimit(s.highScoreLimit),
		repository.WithLogger(s.logger.Named("highscores")),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
		dedupe.WithScope("highscore"),
	)

	if len(s.prewarmLangs) > 0 && s.synthesizer != nil {
		s.pool = workerpool.NewPool(s.prewarmWorkers,
			workerpool.WithName("tts-prewarm"),
			workerpool.WithLogger(s.logger),
		)
		s.pool.Start(ctx)
		go s.prewarm(ctx, s.pool, s.synthesizer, s.prewarmLangs)
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "chirp service started",
		logger.Bool("speech", s.recognizer != nil),
		logger.Bool("tts", s.synthesizer != nil),
		logger.Bool("translate", s.translator != nil),
		logger.Int("songs", s.songs.Len()),
		logger.Int("highscoreLimit", s.highScoreLimit),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// prewarm queues one synthesis job per phrase.
func (s *Service) prewarm(ctx context.Context, pool *workerpool.Pool, syn speech.Synthesizer, languages []string) {
	queued := 0
	for _, lang := range languages {
		for _, text := range s.phrases.Phrases(lang) {
			job := workerpool.Job{
				Name: lang + ":" + text,
				Run: func(ctx context.Context) error {
					_, err := syn.Synthesize(ctx, text, lang)
					return err
				},
			}
			if err := pool.Submit(ctx, job); err != nil {
				s.logger.Debug(ctx, "tts prewarm stopped", logger.Error(err))
				return
			}
			queued++
		}
	}
	s.logger.Info(ctx, "tts prewarm queued", logger.Int("phrases", queued))
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping chirp service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
		s.pool = nil
	}

	if s.kv != nil {
		if err := s.kv.Close(); err != nil {
			s.logger.Warn(ctx, "closing store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "chirp service stopped")
}

// Recognizer returns the configured speech-to-text backend, or nil.
func (s *Service) Recognizer() speech.Recognizer {
	return s.recognizer
}

// Status reports which backends are configured.
func (s *Service) Status(context.Context) api.Status {
	return api.Status{
		ProjectID:      s.projectID,
		Location:       s.location,
		TTSReady:       s.synthesizer != nil,
		SpeechReady:    s.recognizer != nil,
		TranslateReady: s.translator != nil,
	}
}

// NewPhrase picks a random phrase; unknown languages fall back to English.
func (s *Service) NewPhrase(language string) string {
	s.served.Add(1)
	return s.phrases.Random(language)
}

// Synthesize returns MP3 audio for text.
func (s *Service) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if s.synthesizer == nil {
		return nil, speech.ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return nil, speech.ErrEmptyText
	}
	audio, err := s.synthesizer.Synthesize(ctx, text, language)
	if err != nil {
		metrics.RecordErrorByComponent("tts", "synthesize")
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return audio, nil
}

// Translate translates text to English.
func (s *Service) Translate(ctx context.Context, text, sourceLanguage string) (speech.Translation, error) {
	if s.translator == nil {
		return speech.Translation{}, speech.ErrNotConfigured
	}
	metrics.RecordTranslateRequest(sourceLanguage)
	tr, err := s.translator.Translate(ctx, text, sourceLanguage)
	if err != nil {
		metrics.RecordErrorByComponent("translate", "translate")
		return speech.Translation{}, err
	}
	return tr, nil
}

// Songs lists the catalog.
func (s *Service) Songs() []model.ReferenceSong {
	return s.songs.List()
}

// Song returns one song or songs.ErrUnknownSong.
func (s *Service) Song(key string) (model.ReferenceSong, error) {
	return s.songs.Get(key)
}

// Score compares recognized words with a catalog song.
func (s *Service) Score(ctx context.Context, songKey string, words []model.WordToken) (scoring.Result, error) {
	song, err := s.songs.Get(songKey)
	if err != nil {
		return scoring.Result{}, err
	}
	res, err := s.calculator.Score(ctx, scoring.Input{UserWords: words, Song: song})
	if err != nil {
		return scoring.Result{}, err
	}
	s.scored.Add(1)
	return res, nil
}

func (s *Service) store() (*repository.HighScores, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.highScores, nil
}

// HighScores lists a board, best first.
func (s *Service) HighScores(ctx context.Context, board repository.Board) ([]model.HighScoreEntry, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	return st.List(ctx, board)
}

// QualifiesHighScore reports whether score would enter board.
func (s *Service) QualifiesHighScore(ctx context.Context, board repository.Board, score int) (bool, error) {
	st, err := s.store()
	if err != nil {
		return false, err
	}
	return st.Qualifies(ctx, board, score)
}

// SubmitHighScore stores a qualifying score.
func (s *Service) SubmitHighScore(ctx context.Context, board repository.Board, name string, score int) (bool, []model.HighScoreEntry, error) {
	st, err := s.store()
	if err != nil {
		return false, nil, err
	}
	saved, entries, err := st.Submit(ctx, board, name, score)
	if err != nil {
		return false, nil, err
	}
	if saved {
		s.logger.Info(ctx, "new high score",
			logger.String("board", string(board)),
			logger.String("name", strings.TrimSpace(name)),
			logger.Int("score", score),
		)
	}
	return saved, entries, nil
}

// ResetHighScores clears a board.
func (s *Service) ResetHighScores(ctx context.Context, board repository.Board) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	return st.Reset(ctx, board)
}

// SeenAndRecord atomically checks if a submission id was seen and records
// it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d == nil {
		return false
	}
	return d.SeenAndRecord(ctx, id)
}

// Unrecord forgets a submission id so that it can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d != nil {
		d.Unrecord(ctx, id)
	}
}

// Size returns the current number of remembered submission ids.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Stats returns service counters for the /stats page.
func (s *Service) Stats(context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":        s.started,
		"songs":          s.songs.Len(),
		"languages":      s.phrases.Languages(),
		"highscoreLimit": s.highScoreLimit,
		"dedupeSize":     s.dedupeSize,
		"phrasesServed":  s.served.Load(),
		"scoresComputed": s.scored.Load(),
		"speech":         s.recognizer != nil,
		"tts":            s.synthesizer != nil,
		"translate":      s.translator != nil,
	}

	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		if s.deduper != nil {
			stats["submissionIds"] = s.deduper.Size()
		}
		if s.pool != nil {
			done, failed := s.pool.Stats()
			stats["prewarmDone"] = done
			stats["prewarmFailed"] = failed
		}
	}

	return stats
}
