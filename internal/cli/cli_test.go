package cli_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/http/api"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/http/listen"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/speech"
	service "github.com/dazdaz/chirp-demo-enhanced/internal/app"
	"github.com/dazdaz/chirp-demo-enhanced/internal/cli"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/phrases"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/songs"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
)

const testSong = "atirei"

// perfectSinger drains the audio and answers with the song's own reference
// words at full confidence.
type perfectSinger struct{}

func (perfectSinger) Recognize(_ context.Context, audio io.Reader, _ string) <-chan model.TranscriptEvent {
	out := make(chan model.TranscriptEvent, 1)
	go func() {
		defer close(out)
		_, _ = io.Copy(io.Discard, audio)
		song, _ := songs.Get(testSong)
		words := make([]model.WordToken, len(song.Words))
		for i, w := range song.Words {
			w.Confidence = 1
			words[i] = w
		}
		out <- model.TranscriptEvent{IsFinal: true, Transcript: "atirei o pau no gato", Words: words}
	}()
	return out
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	return []byte("ID3" + text), nil
}

type stubTranslator struct{}

func (stubTranslator) Translate(_ context.Context, text, source string) (speech.Translation, error) {
	return speech.Translation{Text: "[en] " + text, SourceLanguage: source}, nil
}

func newServer(t *testing.T, rec speech.Recognizer, opts ...service.Option) string {
	t.Helper()
	opts = append([]service.Option{
		service.WithLogger(logger.Nop()),
		service.WithPhrases(phrases.New(phrases.WithPhrases("fr-FR", []string{"Bonjour"}))),
	}, opts...)
	if rec != nil {
		opts = append(opts, service.WithRecognizer(rec))
	}
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(mux)
	listen.New(rec, listen.WithLogger(logger.Nop())).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func writeSilence(t *testing.T, d time.Duration) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	n := int(d.Seconds() * 16000)
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, n),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSing(t *testing.T) {
	Convey("Given a server that hears the song perfectly", t, func() {
		ctx := context.Background()
		url := newServer(t, perfectSinger{})
		var out bytes.Buffer
		r := cli.NewRunner(url, cli.WithOutput(&out), cli.WithLogger(logger.Nop()),
			cli.WithIDGenerator(func() string { return "take-1" }))

		Convey("When a recording is sung with a name", func() {
			res, err := r.Sing(ctx, cli.SingOptions{
				Song: testSong,
				WAV:  writeSilence(t, 500*time.Millisecond),
				Name: "Ana",
				Fast: true,
			})

			Convey("Then it scores full marks and lands on the board", func() {
				So(err, ShouldBeNil)
				So(res.OverallScore, ShouldEqual, 100)
				So(out.String(), ShouldContainSubstring, "atirei o pau no gato")
				So(out.String(), ShouldContainSubstring, "new high score for Ana!")
				So(out.String(), ShouldContainSubstring, "1. Ana")
			})

			Convey("Then the board can be shown and cleared", func() {
				out.Reset()
				So(r.Scores(ctx, "singing", false), ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "Ana")

				So(r.Scores(ctx, "singing", true), ShouldBeNil)
				out.Reset()
				So(r.Scores(ctx, "singing", false), ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "(no scores yet)")
			})
		})

		Convey("When the song does not exist", func() {
			_, err := r.Sing(ctx, cli.SingOptions{Song: "nope", WAV: "missing.wav", Fast: true})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a server without speech recognition", t, func() {
		url := newServer(t, nil)
		r := cli.NewRunner(url, cli.WithOutput(io.Discard), cli.WithLogger(logger.Nop()))

		Convey("Then singing reports the server error", func() {
			_, err := r.Sing(context.Background(), cli.SingOptions{
				Song: testSong,
				WAV:  writeSilence(t, 100*time.Millisecond),
				Fast: true,
			})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, listen.NotInitializedMessage)
		})
	})
}

func TestLearn(t *testing.T) {
	Convey("Given a server with speech backends", t, func() {
		ctx := context.Background()
		url := newServer(t, nil,
			service.WithSynthesizer(stubSynthesizer{}),
			service.WithTranslator(stubTranslator{}),
		)
		var out bytes.Buffer
		r := cli.NewRunner(url, cli.WithOutput(&out), cli.WithLogger(logger.Nop()))
		audioPath := filepath.Join(t.TempDir(), "phrase.mp3")

		Convey("When a French round is answered correctly", func() {
			res, err := r.Learn(ctx, cli.LearnOptions{
				Language: "fr-FR",
				Answer:   "bonjour",
				Name:     "Bea",
				AudioOut: audioPath,
				Elapsed:  time.Second,
			})

			Convey("Then the round is scored, translated and saved", func() {
				So(err, ShouldBeNil)
				So(res.Distance, ShouldEqual, 0)
				So(res.RoundScore, ShouldEqual, 98)

				data, err := os.ReadFile(audioPath)
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "ID3Bonjour")

				So(out.String(), ShouldContainSubstring, "meaning:    [en] Bonjour")
				So(out.String(), ShouldContainSubstring, "new high score for Bea!")
			})
		})
	})

	Convey("Given a server without speech backends", t, func() {
		url := newServer(t, nil)
		var out bytes.Buffer
		r := cli.NewRunner(url, cli.WithOutput(&out), cli.WithLogger(logger.Nop()))

		Convey("Then the round is still scored", func() {
			res, err := r.Learn(context.Background(), cli.LearnOptions{
				Language: "fr-FR",
				Answer:   "bonsoir",
				AudioOut: filepath.Join(t.TempDir(), "phrase.mp3"),
				Elapsed:  time.Second,
			})
			So(err, ShouldBeNil)
			So(res.Distance, ShouldEqual, 2)
			So(out.String(), ShouldNotContainSubstring, "meaning:")
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given the command dispatcher", t, func() {
		ctx := context.Background()
		url := newServer(t, perfectSinger{})
		var stdout, stderr bytes.Buffer

		Convey("Then status prints the backends", func() {
			err := cli.Run(ctx, []string{"-server", url, "status"}, &stdout, &stderr)
			So(err, ShouldBeNil)
			So(stdout.String(), ShouldContainSubstring, "speech:     ready")
			So(stdout.String(), ShouldContainSubstring, "tts:        not configured")
		})

		Convey("Then scores prints an empty board", func() {
			err := cli.Run(ctx, []string{"-server", url, "scores", "-board", "learning"}, &stdout, &stderr)
			So(err, ShouldBeNil)
			So(stdout.String(), ShouldContainSubstring, "learning high scores")
		})

		Convey("Then an unknown board is an error", func() {
			err := cli.Run(ctx, []string{"-server", url, "scores", "-board", "golf"}, &stdout, &stderr)
			So(err, ShouldNotBeNil)
		})

		Convey("Then unknown commands are usage errors", func() {
			err := cli.Run(ctx, []string{"-server", url, "dance"}, &stdout, &stderr)
			So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
			So(stderr.String(), ShouldContainSubstring, "Usage:")
		})

		Convey("Then sing requires a song and a recording", func() {
			err := cli.Run(ctx, []string{"-server", url, "sing", "-song", testSong}, &stdout, &stderr)
			So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
		})

		Convey("Then no command is a usage error", func() {
			err := cli.Run(ctx, nil, &stdout, &stderr)
			So(errors.Is(err, cli.ErrUsage), ShouldBeTrue)
		})
	})
}
