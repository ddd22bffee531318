// Package songs holds the reference refrains used by the singing contest.
package songs

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
)

// DefaultDuration is the recording window used when a song has no time set.
const DefaultDuration = 15 * time.Second

//go:embed songs.yaml
var catalogYAML []byte

var (
	// ErrUnknownSong is returned when a key is not in the catalog.
	ErrUnknownSong = errors.New("unknown song")
	// ErrDuplicateSong is returned when a catalog defines the same key twice.
	ErrDuplicateSong = errors.New("duplicate song key")
)

type yamlWord struct {
	Word  string  `yaml:"word"`
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

type yamlSong struct {
	model.ReferenceSong `yaml:",inline"`
	Words               []yamlWord `yaml:"words"`
}

type yamlCatalog struct {
	Songs []yamlSong `yaml:"songs"`
}

// Catalog is an immutable, key-ordered set of reference songs.
type Catalog struct {
	songs []model.ReferenceSong
	byKey map[string]int
}

// Parse decodes a YAML catalog. Reference words get confidence 1.
func Parse(data []byte) (*Catalog, error) {
	var raw yamlCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse song catalog: %w", err)
	}

	c := &Catalog{byKey: make(map[string]int, len(raw.Songs))}
	for _, s := range raw.Songs {
		song := s.ReferenceSong
		song.Key = strings.TrimSpace(song.Key)
		if song.Key == "" {
			return nil, fmt.Errorf("parse song catalog: song %q has no key", song.Title)
		}
		if _, dup := c.byKey[song.Key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSong, song.Key)
		}
		if song.DurationSeconds <= 0 {
			song.DurationSeconds = DefaultDuration.Seconds()
		}
		for _, w := range s.Words {
			song.Words = append(song.Words, model.WordToken{
				Word:       w.Word,
				StartTime:  w.Start,
				EndTime:    w.End,
				Confidence: 1,
			})
		}
		c.byKey[song.Key] = 0
		c.songs = append(c.songs, song)
	}

	sort.SliceStable(c.songs, func(i, j int) bool { return c.songs[i].Key < c.songs[j].Key })
	for i, s := range c.songs {
		c.byKey[s.Key] = i
	}
	return c, nil
}

// List returns every song ordered by key.
func (c *Catalog) List() []model.ReferenceSong {
	out := make([]model.ReferenceSong, len(c.songs))
	copy(out, c.songs)
	return out
}

// Get returns the song with the given key.
func (c *Catalog) Get(key string) (model.ReferenceSong, error) {
	i, ok := c.byKey[key]
	if !ok {
		return model.ReferenceSong{}, fmt.Errorf("%w: %s", ErrUnknownSong, key)
	}
	return c.songs[i], nil
}

// Len returns the number of songs in the catalog.
func (c *Catalog) Len() int { return len(c.songs) }

var builtin = mustParse(catalogYAML)

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the embedded catalog.
func Default() *Catalog { return builtin }

// List returns every song in the embedded catalog.
func List() []model.ReferenceSong { return builtin.List() }

// Get looks a song up in the embedded catalog.
func Get(key string) (model.ReferenceSong, error) { return builtin.Get(key) }

// Duration returns the song's recording window.
func Duration(song model.ReferenceSong) time.Duration {
	if song.DurationSeconds <= 0 {
		return DefaultDuration
	}
	return time.Duration(song.DurationSeconds * float64(time.Second))
}

// Lines splits the song text into non-empty lyric lines.
func Lines(song model.ReferenceSong) []string {
	var out []string
	for _, l := range strings.Split(song.Text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// LineAt returns the index of the lyric line being sung after elapsed time,
// or -1 before the start, after the window, or for a song with no lines.
// The window is split evenly across lines.
func LineAt(song model.ReferenceSong, elapsed time.Duration) int {
	lines := Lines(song)
	total := Duration(song)
	if len(lines) == 0 || elapsed < 0 || elapsed >= total {
		return -1
	}
	perLine := total / time.Duration(len(lines))
	if perLine <= 0 {
		return -1
	}
	idx := int(elapsed / perLine)
	if idx >= len(lines) {
		idx = len(lines) - 1
	}
	return idx
}
