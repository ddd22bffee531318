package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/types"
)

// Status prints the server's backend configuration.
func (r *Runner) Status(ctx context.Context) error {
	st, err := r.api.Status(ctx)
	if err != nil {
		return err
	}
	r.printf("server:     %s (%s)\n", r.server, st.Status)
	r.printf("project:    %s\n", orNone(st.ProjectID))
	r.printf("location:   %s\n", orNone(st.Location))
	r.printf("speech:     %s\n", onOff(st.SpeechClient))
	r.printf("tts:        %s\n", onOff(st.TTSClient))
	r.printf("translate:  %s\n", onOff(st.TranslateClient))
	return nil
}

// Scores prints a board, or clears it when reset is set.
func (r *Runner) Scores(ctx context.Context, board string, reset bool) error {
	if reset {
		if err := r.api.ResetHighScores(ctx, board); err != nil {
			return err
		}
		r.printf("%s board cleared\n", board)
		return nil
	}
	entries, err := r.api.HighScores(ctx, board)
	if err != nil {
		return err
	}
	r.printBoard(board, entries)
	return nil
}

func (r *Runner) scoresCommand(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("scores", flag.ContinueOnError)
	fs.SetOutput(stderr)
	board := fs.String("board", "singing", "Board to show (singing or learning)")
	reset := fs.Bool("reset", false, "Clear the board")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return r.Scores(ctx, *board, *reset)
}

func (r *Runner) printBoard(board string, entries []types.Entry) {
	r.printf("%s high scores\n", board)
	if len(entries) == 0 {
		r.printf("  (no scores yet)\n")
		return
	}
	for _, e := range entries {
		r.printf("  %d. %-20s %3d\n", e.Rank, e.Name, e.Score)
	}
}

// submit posts score to board when a name is given and the score qualifies.
func (r *Runner) submit(ctx context.Context, board, name string, score int) error {
	if name == "" {
		return nil
	}
	ok, err := r.api.Qualifies(ctx, board, score)
	if err != nil {
		return err
	}
	if !ok {
		r.printf("%d does not make the %s board\n", score, board)
		return nil
	}
	res, err := r.api.SubmitHighScore(ctx, board, name, score, r.newID())
	if err != nil {
		return err
	}
	if res.Saved {
		r.printf("new high score for %s!\n", name)
	}
	r.printBoard(board, res.Entries)
	return nil
}

func onOff(b bool) string {
	if b {
		return "ready"
	}
	return "not configured"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
