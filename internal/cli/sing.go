package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dazdaz/chirp-demo-enhanced/internal/client"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/scoring"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/songs"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
)

const (
	boardSinging = "singing"
	frameBytes   = 3200
	lyricTick    = 100 * time.Millisecond
)

// SingOptions configures a singing round.
type SingOptions struct {
	Song string
	WAV  string
	Name string
	// Fast streams the recording as quickly as the socket accepts it instead
	// of in real time. Lyric highlighting is skipped.
	Fast bool
}

// Sing streams a recording against a song, scores the transcript and submits
// the result to the singing board.
func (r *Runner) Sing(ctx context.Context, opts SingOptions) (scoring.Result, error) {
	song, err := r.api.Song(ctx, opts.Song)
	if err != nil {
		return scoring.Result{}, err
	}

	pcm, err := readPCM(opts.WAV)
	if err != nil {
		return scoring.Result{}, err
	}
	window := songs.Duration(song)
	if limit := int(window.Seconds() * client.SampleRate * client.BytesPerSample); len(pcm) > limit {
		pcm = pcm[:limit-limit%client.BytesPerSample]
	}

	r.printf("%s (%s), %.0fs\n", song.Title, song.Language, window.Seconds())

	session, err := client.Dial(ctx, r.server, song.Language,
		client.WithEventHandler(r.printEvent),
		client.WithSessionLogger(r.log),
	)
	if err != nil {
		return scoring.Result{}, err
	}
	defer session.Close()

	pace := client.PCMDuration(frameBytes)
	stopLyrics := func() {}
	if opts.Fast {
		pace = 0
	} else {
		stopLyrics = r.showLyrics(ctx, song)
	}

	streamCtx, cancel := context.WithTimeout(ctx, window)
	sendErr := session.SendPCM(streamCtx, bytes.NewReader(pcm), frameBytes, pace)
	cancel()
	stopLyrics()
	if errors.Is(sendErr, context.DeadlineExceeded) {
		sendErr = nil
	}
	if err := session.Stop(); err != nil && !errors.Is(err, client.ErrSessionClosed) && sendErr == nil {
		sendErr = fmt.Errorf("stop session: %w", err)
	}

	// the server's own error, if it sent one, wins over sendErr
	waitCtx, cancelWait := context.WithTimeout(ctx, drainTimeout)
	defer cancelWait()
	tr := session.Wait(waitCtx)
	if tr.Err != nil {
		return scoring.Result{}, fmt.Errorf("transcription: %w", tr.Err)
	}
	if sendErr != nil {
		return scoring.Result{}, sendErr
	}

	r.printf("\nyou sang: %q\n", tr.Text)
	res := scoring.Calculate(tr.Words, song)
	r.printResult(res)

	if err := r.submit(ctx, boardSinging, opts.Name, res.OverallScore); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) singCommand(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("sing", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts SingOptions
	fs.StringVar(&opts.Song, "song", "", "Song key (see GET /api/songs)")
	fs.StringVar(&opts.WAV, "wav", "", "WAV recording to sing with")
	fs.StringVar(&opts.Name, "name", "", "Name for the high-score board")
	fs.BoolVar(&opts.Fast, "fast", false, "Stream without real-time pacing")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if opts.Song == "" || opts.WAV == "" {
		fs.Usage()
		return fmt.Errorf("%w: -song and -wav are required", ErrUsage)
	}
	_, err := r.Sing(ctx, opts)
	return err
}

func readPCM(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return client.ReadWAV(f)
}

// showLyrics prints each lyric line as its slice of the window starts. The
// returned func stops the ticker and waits for it to exit.
func (r *Runner) showLyrics(ctx context.Context, song model.ReferenceSong) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	lines := songs.Lines(song)
	start := r.now()

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(lyricTick)
		defer ticker.Stop()
		last := -1
		for {
			if idx := songs.LineAt(song, r.now().Sub(start)); idx >= 0 && idx != last {
				last = idx
				r.printf("♪ %s\n", lines[idx])
			}
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func (r *Runner) printEvent(ev client.Event) {
	switch {
	case ev.Error != "":
		r.log.Warn(context.Background(), "transcription error", logger.String("error", ev.Error))
	case ev.IsFinal:
		r.printf("  > %s\n", ev.Transcript)
	}
}

func (r *Runner) printResult(res scoring.Result) {
	r.printf("overall:    %3d\n", res.OverallScore)
	r.printf("accuracy:   %3d\n", res.AccuracyScore)
	r.printf("confidence: %3d\n", res.ConfidenceScore)
	if res.Method == scoring.MethodRhythm {
		r.printf("rhythm:     %3d\n", res.Timing())
	} else {
		r.printf("timing:     %3d\n", res.Timing())
	}
}
