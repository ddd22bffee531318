package scoring

import (
	"math"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Phrase round scoring constants.
const (
	phraseAccuracyBase    = 80.0
	phrasePenaltyPerEdit  = 5.0
	phraseTimeBonusBase   = 20.0
	phraseBonusLossPerSec = 2.0
)

// PhraseResult is the outcome of a language-learning round.
type PhraseResult struct {
	RoundScore    int `json:"roundScore"`
	AccuracyScore int `json:"accuracyScore"`
	TimeBonus     int `json:"timeBonus"`
	Distance      int `json:"distance"`
}

// ScorePhrase scores a typed answer against the phrase that was played.
// Every edit costs 5 of the 80 accuracy points; the 20 point time bonus
// drains at 2 points per second.
func ScorePhrase(answer, phrase string, responseTime time.Duration) PhraseResult {
	d := Levenshtein(answer, phrase)
	accuracy := math.Max(0, phraseAccuracyBase-float64(d)*phrasePenaltyPerEdit)

	secs := math.Max(0, responseTime.Seconds())
	bonus := math.Max(0, phraseTimeBonusBase-secs*phraseBonusLossPerSec)

	acc := int(math.Round(accuracy))
	tb := int(math.Round(bonus))
	return PhraseResult{
		RoundScore:    acc + tb,
		AccuracyScore: acc,
		TimeBonus:     tb,
		Distance:      d,
	}
}

// Levenshtein returns the case-insensitive edit distance between a and b,
// counted in runes.
func Levenshtein(a, b string) int {
	lower := cases.Lower(language.Und)
	s1 := []rune(lower.String(a))
	s2 := []rune(lower.String(b))

	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
