package repository_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/repository"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func scores(entries []model.HighScoreEntry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Score
	}
	return out
}

func TestHighScores(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty singing board", t, func() {
		kv := repository.NewMemoryKV()
		hs := repository.NewHighScores(kv, repository.WithLogger(logger.Nop()))

		Convey("Then it lists nothing", func() {
			list, err := hs.List(ctx, repository.BoardSinging)
			So(err, ShouldBeNil)
			So(list, ShouldBeEmpty)
		})

		Convey("Then any positive score qualifies", func() {
			ok, err := hs.Qualifies(ctx, repository.BoardSinging, 1)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			ok, _ = hs.Qualifies(ctx, repository.BoardSinging, 0)
			So(ok, ShouldBeFalse)
		})

		Convey("When six scores are submitted", func() {
			for i, s := range []int{40, 90, 70, 10, 60, 80} {
				saved, _, err := hs.Submit(ctx, repository.BoardSinging, fmt.Sprintf(" p%d ", i), s)
				So(err, ShouldBeNil)
				So(saved, ShouldBeTrue)
			}

			Convey("Then the board keeps the top five, highest first", func() {
				list, err := hs.List(ctx, repository.BoardSinging)
				So(err, ShouldBeNil)
				So(scores(list), ShouldResemble, []int{90, 80, 70, 60, 40})
				So(list[0].Name, ShouldEqual, "p1")
			})

			Convey("And a score equal to the lowest is rejected", func() {
				saved, list, err := hs.Submit(ctx, repository.BoardSinging, "late", 40)
				So(err, ShouldBeNil)
				So(saved, ShouldBeFalse)
				So(len(list), ShouldEqual, 5)
			})

			Convey("And a tie above the lowest keeps the earlier entry first", func() {
				saved, list, err := hs.Submit(ctx, repository.BoardSinging, "tie", 70)
				So(err, ShouldBeNil)
				So(saved, ShouldBeTrue)
				So(scores(list), ShouldResemble, []int{90, 80, 70, 70, 60})
				So(list[2].Name, ShouldEqual, "p2")
				So(list[3].Name, ShouldEqual, "tie")
			})

			Convey("And the learning board is untouched", func() {
				list, _ := hs.List(ctx, repository.BoardLearning)
				So(list, ShouldBeEmpty)
			})

			Convey("And the board is reset", func() {
				So(hs.Reset(ctx, repository.BoardSinging), ShouldBeNil)
				list, _ := hs.List(ctx, repository.BoardSinging)
				So(list, ShouldBeEmpty)
			})
		})

		Convey("When the name is blank", func() {
			_, _, err := hs.Submit(ctx, repository.BoardSinging, "   ", 50)
			So(errors.Is(err, repository.ErrEmptyName), ShouldBeTrue)
		})

		Convey("When the board is unknown", func() {
			_, err := hs.List(ctx, repository.Board("karaoke"))
			So(errors.Is(err, repository.ErrUnknownBoard), ShouldBeTrue)
			So(errors.Is(hs.Reset(ctx, repository.Board("karaoke")), repository.ErrUnknownBoard), ShouldBeTrue)
		})

		Convey("When stored data is malformed", func() {
			key, _ := repository.StorageKey(repository.BoardSinging)
			So(kv.Set(ctx, key, []byte("{not json")), ShouldBeNil)

			Convey("Then it reads as an empty list", func() {
				list, err := hs.List(ctx, repository.BoardSinging)
				So(err, ShouldBeNil)
				So(list, ShouldBeEmpty)
			})
		})

		Convey("When stored data is unsorted and too long", func() {
			key, _ := repository.StorageKey(repository.BoardLearning)
			So(kv.Set(ctx, key, []byte(`[{"name":"a","score":1},{"name":"b","score":9},{"name":"c","score":5},
				{"name":"d","score":3},{"name":"e","score":7},{"name":"f","score":2}]`)), ShouldBeNil)

			Convey("Then it is normalized on read", func() {
				list, err := hs.List(ctx, repository.BoardLearning)
				So(err, ShouldBeNil)
				So(scores(list), ShouldResemble, []int{9, 7, 5, 3, 2})
			})
		})
	})

	Convey("Given a board limited to two entries", t, func() {
		hs := repository.NewHighScores(repository.NewMemoryKV(), repository.WithLimit(2))
		_, _, _ = hs.Submit(ctx, repository.BoardLearning, "a", 10)
		_, _, _ = hs.Submit(ctx, repository.BoardLearning, "b", 20)

		ok, err := hs.Qualifies(ctx, repository.BoardLearning, 11)
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)
		ok, _ = hs.Qualifies(ctx, repository.BoardLearning, 10)
		So(ok, ShouldBeFalse)
		So(hs.Limit(), ShouldEqual, 2)
	})

	Convey("Given concurrent submissions", t, func() {
		hs := repository.NewHighScores(repository.NewMemoryKV())
		var wg sync.WaitGroup
		for i := 1; i <= 50; i++ {
			wg.Add(1)
			go func(score int) {
				defer wg.Done()
				_, _, _ = hs.Submit(ctx, repository.BoardSinging, "p", score)
			}(i)
		}
		wg.Wait()

		Convey("Then the board holds the five best", func() {
			list, err := hs.List(ctx, repository.BoardSinging)
			So(err, ShouldBeNil)
			So(scores(list), ShouldResemble, []int{50, 49, 48, 47, 46})
		})
	})
}

func TestParseBoard(t *testing.T) {
	Convey("Given board names", t, func() {
		b, err := repository.ParseBoard(" Singing ")
		So(err, ShouldBeNil)
		So(b, ShouldEqual, repository.BoardSinging)

		key, _ := repository.StorageKey(repository.BoardSinging)
		So(key, ShouldEqual, "chirp-high-scores-v2")
		key, _ = repository.StorageKey(repository.BoardLearning)
		So(key, ShouldEqual, "chirp-high-scores-learning")

		_, err = repository.ParseBoard("dance")
		So(errors.Is(err, repository.ErrUnknownBoard), ShouldBeTrue)
		So(repository.Boards(), ShouldHaveLength, 2)
	})
}

func TestKVImplementations(t *testing.T) {
	ctx := context.Background()

	open := map[string]func() (repository.KV, error){
		"memory": func() (repository.KV, error) { return repository.NewMemoryKV(), nil },
		"sqlite": func() (repository.KV, error) {
			return repository.OpenSQLiteKV(filepath.Join(t.TempDir(), "data", "chirp.db"))
		},
	}

	for name, fn := range open {
		Convey("Given a "+name+" KV", t, func() {
			kv, err := fn()
			So(err, ShouldBeNil)
			defer kv.Close()

			Convey("Then missing keys report ErrNotFound", func() {
				_, err := kv.Get(ctx, "missing")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then values round-trip and can be overwritten", func() {
				So(kv.Set(ctx, "k", []byte("one")), ShouldBeNil)
				So(kv.Set(ctx, "k", []byte("two")), ShouldBeNil)
				v, err := kv.Get(ctx, "k")
				So(err, ShouldBeNil)
				So(string(v), ShouldEqual, "two")
			})

			Convey("Then deleting is idempotent", func() {
				So(kv.Set(ctx, "k", []byte("x")), ShouldBeNil)
				So(kv.Delete(ctx, "k"), ShouldBeNil)
				So(kv.Delete(ctx, "k"), ShouldBeNil)
				_, err := kv.Get(ctx, "k")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	}

	Convey("Given a sqlite file reopened", t, func() {
		path := filepath.Join(t.TempDir(), "chirp.db")
		kv, err := repository.OpenSQLiteKV(path)
		So(err, ShouldBeNil)
		hs := repository.NewHighScores(kv)
		_, _, err = hs.Submit(ctx, repository.BoardSinging, "ana", 77)
		So(err, ShouldBeNil)
		So(kv.Close(), ShouldBeNil)

		kv2, err := repository.OpenSQLiteKV(path)
		So(err, ShouldBeNil)
		defer kv2.Close()
		list, err := repository.NewHighScores(kv2).List(ctx, repository.BoardSinging)
		So(err, ShouldBeNil)
		So(list, ShouldResemble, []model.HighScoreEntry{{Name: "ana", Score: 77}})
	})

	Convey("Given a closed memory KV", t, func() {
		kv := repository.NewMemoryKV()
		So(kv.Close(), ShouldBeNil)
		So(errors.Is(kv.Set(ctx, "k", nil), repository.ErrClosed), ShouldBeTrue)
	})
}
