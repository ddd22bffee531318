// Package types contains the wire types shared by the API and its clients.
package types

import "github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"

// Entry is one ranked row of a high-score board.
type Entry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Rank numbers entries from 1 in list order. The result is never nil so it
// encodes as an empty JSON array.
func Rank(entries []model.HighScoreEntry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{Rank: i + 1, Name: e.Name, Score: e.Score}
	}
	return out
}
