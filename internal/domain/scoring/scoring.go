// Package scoring compares a sung or spoken transcript against a reference
// and turns the comparison into 0-100 scores.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultMaxTimingError   = 1.0 // seconds; mean error at or above this scores 0
	defaultRhythmScale      = 0.5 // seconds of pause deviation that costs 100 points
	defaultSinglePauseScore = 80.0
	defaultAccuracyWeight   = 0.5
	defaultConfidenceWeight = 0.3
	defaultTimingWeight     = 0.2
	maxScoreValue           = MaxScore
)

// MaxScore is the highest score any round can produce.
const MaxScore = 100

// Method names the scoring path that produced a Result.
type Method string

const (
	// MethodDetailed aligns against word-level reference timing.
	MethodDetailed Method = "detailed"
	// MethodRhythm aligns against plain text and scores pause regularity.
	MethodRhythm Method = "rhythm"
)

// Input carries the user's recognized words and the reference to score against.
type Input struct {
	UserWords []model.WordToken
	Song      model.ReferenceSong
}

// Result contains the computed scores. Exactly one of TimingScore and
// RhythmScore is set, depending on Method.
type Result struct {
	Method          Method `json:"method"`
	OverallScore    int    `json:"overallScore"`
	AccuracyScore   int    `json:"accuracyScore"`
	ConfidenceScore int    `json:"confidenceScore"`
	TimingScore     *int   `json:"timingScore,omitempty"`
	RhythmScore     *int   `json:"rhythmScore,omitempty"`
}

// Timing returns the timing or rhythm component, whichever is present.
func (r Result) Timing() int {
	switch {
	case r.TimingScore != nil:
		return *r.TimingScore
	case r.RhythmScore != nil:
		return *r.RhythmScore
	default:
		return 0
	}
}

// Scorer computes a score from an input.
type Scorer interface {
	// Score computes a score, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithMaxTimingError sets the mean timing error (seconds) that floors the
// timing score to zero.
func WithMaxTimingError(seconds float64) Option {
	return func(c *Calculator) {
		if seconds > 0 {
			c.maxTimingError = seconds
		}
	}
}

// WithRhythmScale sets the pause standard deviation (seconds) that floors the
// rhythm score to zero.
func WithRhythmScale(seconds float64) Option {
	return func(c *Calculator) {
		if seconds > 0 {
			c.rhythmScale = seconds
		}
	}
}

// WithWeights sets the accuracy, confidence and timing weights. Weights that
// do not sum to 1 are ignored.
func WithWeights(accuracy, confidence, timing float64) Option {
	return func(c *Calculator) {
		if accuracy < 0 || confidence < 0 || timing < 0 {
			return
		}
		if math.Abs(accuracy+confidence+timing-1) > 1e-9 {
			return
		}
		c.accuracyWeight = accuracy
		c.confidenceWeight = confidence
		c.timingWeight = timing
	}
}

// Calculator implements Scorer with greedy ordered alignment.
type Calculator struct {
	maxTimingError   float64
	rhythmScale      float64
	accuracyWeight   float64
	confidenceWeight float64
	timingWeight     float64
}

// NewCalculator creates a calculator with configuration options.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		maxTimingError:   defaultMaxTimingError,
		rhythmScale:      defaultRhythmScale,
		accuracyWeight:   defaultAccuracyWeight,
		confidenceWeight: defaultConfidenceWeight,
		timingWeight:     defaultTimingWeight,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var defaultCalculator = NewCalculator()

// Calculate scores userWords against song with the default weights.
func Calculate(userWords []model.WordToken, song model.ReferenceSong) Result {
	return defaultCalculator.Calculate(userWords, song)
}

// Score computes a score for the given input.
func (c *Calculator) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}
	return c.Calculate(in.UserWords, in.Song), nil
}

// Calculate picks the detailed path when the song has timed words and the
// rhythm path otherwise.
func (c *Calculator) Calculate(userWords []model.WordToken, song model.ReferenceSong) Result {
	if song.HasTimedWords() {
		return c.Detailed(userWords, song.Words)
	}
	return c.Rhythm(userWords, song.Text)
}

// Detailed scores userWords against timed reference words.
func (c *Calculator) Detailed(userWords, refWords []model.WordToken) Result {
	if len(userWords) == 0 || len(refWords) == 0 {
		return zeroResult(MethodDetailed)
	}

	userTokens := normalizeWords(userWords)
	refTokens := normalizeWords(refWords)

	userStart := userWords[0].StartTime
	refStart := refWords[0].StartTime

	matches := Align(userTokens, refTokens)

	var totalConfidence, totalTimingError float64
	for _, m := range matches {
		totalConfidence += clampUnit(userWords[m.UserIndex].Confidence)
		userRel := userWords[m.UserIndex].StartTime - userStart
		refRel := refWords[m.RefIndex].StartTime - refStart
		totalTimingError += math.Abs(userRel - refRel)
	}

	n := float64(len(matches))
	accuracy := n / float64(max(len(userWords), len(refWords))) * maxScoreValue

	var confidence, timing float64
	if n > 0 {
		confidence = totalConfidence / n * maxScoreValue
		avgErr := totalTimingError / n
		timing = math.Max(0, (1-avgErr/c.maxTimingError)*maxScoreValue)
	}

	t := roundScore(timing)
	return Result{
		Method:          MethodDetailed,
		OverallScore:    roundScore(c.overall(accuracy, confidence, timing)),
		AccuracyScore:   roundScore(accuracy),
		ConfidenceScore: roundScore(confidence),
		TimingScore:     &t,
	}
}

// Rhythm scores userWords against a plain-text reference. The timing
// component is replaced by the regularity of the pauses between words.
func (c *Calculator) Rhythm(userWords []model.WordToken, refText string) Result {
	refTokens := Tokenize(refText)
	if len(userWords) == 0 || len(refTokens) == 0 {
		return zeroResult(MethodRhythm)
	}

	matches := Align(normalizeWords(userWords), refTokens)

	var totalConfidence float64
	for _, m := range matches {
		totalConfidence += clampUnit(userWords[m.UserIndex].Confidence)
	}

	n := float64(len(matches))
	accuracy := n / float64(len(refTokens)) * maxScoreValue

	var confidence float64
	if n > 0 {
		confidence = totalConfidence / n * maxScoreValue
	}

	rhythm := c.rhythmFromPauses(pauses(userWords))

	r := roundScore(rhythm)
	return Result{
		Method:          MethodRhythm,
		OverallScore:    roundScore(c.overall(accuracy, confidence, rhythm)),
		AccuracyScore:   roundScore(accuracy),
		ConfidenceScore: roundScore(confidence),
		RhythmScore:     &r,
	}
}

func (c *Calculator) overall(accuracy, confidence, timing float64) float64 {
	return math.Min(maxScoreValue,
		accuracy*c.accuracyWeight+
			confidence*c.confidenceWeight+
			timing*c.timingWeight)
}

func (c *Calculator) rhythmFromPauses(ps []float64) float64 {
	switch {
	case len(ps) > 1:
		var sum float64
		for _, p := range ps {
			sum += p
		}
		mean := sum / float64(len(ps))
		var variance float64
		for _, p := range ps {
			variance += (p - mean) * (p - mean)
		}
		stdDev := math.Sqrt(variance / float64(len(ps)))
		return math.Max(0, maxScoreValue-(stdDev/c.rhythmScale)*maxScoreValue)
	case len(ps) == 1:
		return defaultSinglePauseScore
	default:
		return 0
	}
}

// pauses returns the positive gaps between consecutive words.
func pauses(words []model.WordToken) []float64 {
	var out []float64
	for i := 1; i < len(words); i++ {
		if p := words[i].StartTime - words[i-1].EndTime; p > 0 {
			out = append(out, p)
		}
	}
	return out
}

// Match pairs a user word index with the reference word index it aligned to.
type Match struct {
	UserIndex int
	RefIndex  int
}

// Align performs greedy ordered alignment. Each user token is matched to the
// first equal reference token at or after the cursor, and the cursor then
// moves past it, so reference tokens are never matched twice and matches are
// strictly increasing in both sequences.
func Align(user, ref []string) []Match {
	var matches []Match
	cursor := 0
	for i, w := range user {
		for j := cursor; j < len(ref); j++ {
			if w == ref[j] {
				matches = append(matches, Match{UserIndex: i, RefIndex: j})
				cursor = j + 1
				break
			}
		}
	}
	return matches
}

// Tokenize normalizes text and splits it on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}

func normalizeWords(words []model.WordToken) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = Normalize(w.Word)
	}
	return out
}

func zeroResult(m Method) Result {
	zero := 0
	r := Result{Method: m}
	if m == MethodDetailed {
		r.TimingScore = &zero
	} else {
		r.RhythmScore = &zero
	}
	return r
}

func clampUnit(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}

func roundScore(x float64) int {
	return int(math.Max(0, math.Min(maxScoreValue, math.Round(x))))
}
