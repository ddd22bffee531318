package scoring_test

import (
	"testing"
	"time"

	scoring "github.com/dazdaz/chirp-demo-enhanced/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLevenshtein(t *testing.T) {
	Convey("Given two strings", t, func() {
		So(scoring.Levenshtein("kitten", "sitting"), ShouldEqual, 3)
		So(scoring.Levenshtein("Hello", "hello"), ShouldEqual, 0)
		So(scoring.Levenshtein("", "abc"), ShouldEqual, 3)
		So(scoring.Levenshtein("abc", ""), ShouldEqual, 3)
		So(scoring.Levenshtein("Straße", "strasse"), ShouldEqual, 2)
	})
}

func TestScorePhrase(t *testing.T) {
	Convey("Given a phrase round", t, func() {
		Convey("When the answer is exact and instant", func() {
			r := scoring.ScorePhrase("Good morning", "good morning", 0)
			So(r.RoundScore, ShouldEqual, 100)
			So(r.Distance, ShouldEqual, 0)
		})

		Convey("When the answer has two typos after three seconds", func() {
			r := scoring.ScorePhrase("good mornig!", "good morning", 3*time.Second)
			So(r.Distance, ShouldEqual, 2)
			So(r.AccuracyScore, ShouldEqual, 70)
			So(r.TimeBonus, ShouldEqual, 14)
			So(r.RoundScore, ShouldEqual, 84)
		})

		Convey("When the answer is unrelated and slow", func() {
			r := scoring.ScorePhrase("xyz", "where is the train station", time.Minute)
			So(r.AccuracyScore, ShouldEqual, 0)
			So(r.TimeBonus, ShouldEqual, 0)
			So(r.RoundScore, ShouldEqual, 0)
		})

		Convey("When the bonus lands on a half point", func() {
			r := scoring.ScorePhrase("hi", "hi", 1250*time.Millisecond)
			So(r.TimeBonus, ShouldEqual, 18)
		})
	})
}
