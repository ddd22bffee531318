package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

// DefaultLimit is the number of entries kept per board.
const DefaultLimit = 5

// Board names a high-score table.
type Board string

// Known boards.
const (
	BoardSinging  Board = "singing"
	BoardLearning Board = "learning"
)

var storageKeys = map[Board]string{
	BoardSinging:  "chirp-high-scores-v2",
	BoardLearning: "chirp-high-scores-learning",
}

// ParseBoard validates a board name.
func ParseBoard(name string) (Board, error) {
	b := Board(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := storageKeys[b]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBoard, name)
	}
	return b, nil
}

// StorageKey returns the KV key a board is persisted under.
func StorageKey(b Board) (string, error) {
	k, ok := storageKeys[b]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBoard, string(b))
	}
	return k, nil
}

// Boards lists the known boards.
func Boards() []Board {
	return []Board{BoardSinging, BoardLearning}
}

// HighScores keeps a descending top-N list per board on top of a KV.
type HighScores struct {
	kv    KV
	limit int
	log   logger.Logger
	mu    sync.Mutex
}

// NewHighScores creates a high-score store over kv.
func NewHighScores(kv KV, opts ...Option) *HighScores {
	h := &HighScores{
		kv:    kv,
		limit: DefaultLimit,
		log:   logger.Get(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Limit returns the board size.
func (h *HighScores) Limit() int { return h.limit }

// List returns a board's entries, highest first. Missing or malformed
// data reads as an empty list.
func (h *HighScores) List(ctx context.Context, b Board) ([]model.HighScoreEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx, b)
}

// Qualifies reports whether score would enter the board.
func (h *HighScores) Qualifies(ctx context.Context, b Board, score int) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries, err := h.load(ctx, b)
	if err != nil {
		return false, err
	}
	return h.qualifies(entries, score), nil
}

// Submit adds a named score when it qualifies and returns whether it was
// saved together with the resulting board.
func (h *HighScores) Submit(ctx context.Context, b Board, name string, score int) (bool, []model.HighScoreEntry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("submit", float64(time.Since(start).Microseconds())/1000)
	}()

	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil, ErrEmptyName
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.load(ctx, b)
	if err != nil {
		return false, nil, err
	}
	if !h.qualifies(entries, score) {
		return false, entries, nil
	}

	entries = append(entries, model.HighScoreEntry{Name: name, Score: score})
	entries = h.normalize(entries)
	if err := h.save(ctx, b, entries); err != nil {
		return false, nil, err
	}
	return true, entries, nil
}

// Reset removes every entry of a board.
func (h *HighScores) Reset(ctx context.Context, b Board) error {
	key, err := StorageKey(b)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("reset %s: %w", b, err)
	}
	return nil
}

func (h *HighScores) qualifies(entries []model.HighScoreEntry, score int) bool {
	lowest := 0
	if len(entries) >= h.limit {
		lowest = entries[len(entries)-1].Score
	}
	return score > lowest
}

// load must be called with h.mu held.
func (h *HighScores) load(ctx context.Context, b Board) ([]model.HighScoreEntry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("load", float64(time.Since(start).Microseconds())/1000)
	}()

	key, err := StorageKey(b)
	if err != nil {
		return nil, err
	}
	raw, err := h.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []model.HighScoreEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", b, err)
	}

	var entries []model.HighScoreEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		h.log.Warn(ctx, "discarding malformed high scores",
			logger.String("board", string(b)), logger.Error(err))
		metrics.RecordErrorByComponent("repository", "malformed")
		return []model.HighScoreEntry{}, nil
	}
	return h.normalize(entries), nil
}

// save must be called with h.mu held.
func (h *HighScores) save(ctx context.Context, b Board, entries []model.HighScoreEntry) error {
	key, err := StorageKey(b)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", b, err)
	}
	if err := h.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", b, err)
	}
	return nil
}

// normalize sorts descending, keeping submission order for ties, and
// truncates to the limit.
func (h *HighScores) normalize(entries []model.HighScoreEntry) []model.HighScoreEntry {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > h.limit {
		entries = entries[:h.limit]
	}
	if entries == nil {
		entries = []model.HighScoreEntry{}
	}
	return entries
}
