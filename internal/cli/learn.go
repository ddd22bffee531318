package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dazdaz/chirp-demo-enhanced/internal/client"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/phrases"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/scoring"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
)

const (
	boardLearning  = "learning"
	defaultAudio   = "phrase.mp3"
	audioFilePerms = 0o644
)

// LearnOptions configures a language-learning round.
type LearnOptions struct {
	Language string
	Answer   string
	Name     string
	// AudioOut is where the spoken phrase is saved.
	AudioOut string
	// Elapsed overrides the measured response time when positive.
	Elapsed time.Duration
}

// Learn fetches a phrase, saves it as speech, scores the answer and submits
// the round to the learning board.
func (r *Runner) Learn(ctx context.Context, opts LearnOptions) (scoring.PhraseResult, error) {
	if opts.Language == "" {
		opts.Language = phrases.DefaultLanguage
	}
	if opts.AudioOut == "" {
		opts.AudioOut = defaultAudio
	}

	phrase, err := r.api.NewPhrase(ctx, opts.Language)
	if err != nil {
		return scoring.PhraseResult{}, err
	}
	start := r.now()

	audio, err := r.api.Synthesize(ctx, phrase, opts.Language)
	switch {
	case err == nil:
		if err := os.WriteFile(opts.AudioOut, audio, audioFilePerms); err != nil {
			return scoring.PhraseResult{}, fmt.Errorf("saving phrase audio: %w", err)
		}
		r.printf("phrase saved to %s\n", opts.AudioOut)
	case client.IsStatus(err, http.StatusInternalServerError):
		r.log.Warn(ctx, "speech synthesis unavailable", logger.Error(err))
	default:
		return scoring.PhraseResult{}, err
	}

	elapsed := opts.Elapsed
	if elapsed <= 0 {
		elapsed = r.now().Sub(start)
	}

	res, err := r.api.PhraseScore(ctx, opts.Answer, phrase, elapsed)
	if err != nil {
		return res, err
	}

	r.printf("phrase:     %s\n", phrase)
	r.printf("answer:     %s\n", opts.Answer)
	if opts.Language != phrases.DefaultLanguage {
		if tr, err := r.api.Translate(ctx, phrase, opts.Language); err != nil {
			r.log.Warn(ctx, "translation unavailable", logger.Error(err))
		} else {
			r.printf("meaning:    %s\n", tr.Translated)
		}
	}
	r.printf("accuracy:   %3d (%d edits)\n", res.AccuracyScore, res.Distance)
	r.printf("time bonus: %3d\n", res.TimeBonus)
	r.printf("round:      %3d\n", res.RoundScore)

	if err := r.submit(ctx, boardLearning, opts.Name, res.RoundScore); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) learnCommand(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("learn", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts LearnOptions
	fs.StringVar(&opts.Language, "language", phrases.DefaultLanguage, "Language of the phrase")
	fs.StringVar(&opts.Answer, "answer", "", "What you heard")
	fs.StringVar(&opts.Name, "name", "", "Name for the high-score board")
	fs.StringVar(&opts.AudioOut, "audio-out", defaultAudio, "File the spoken phrase is written to")
	fs.DurationVar(&opts.Elapsed, "elapsed", 0, "Response time (default: measured)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	_, err := r.Learn(ctx, opts)
	return err
}
