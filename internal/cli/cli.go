// Package cli implements the chirp command line client.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dazdaz/chirp-demo-enhanced/internal/client"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
)

// Defaults for the command line client.
const (
	DefaultServer  = "http://localhost:8080"
	EnvServer      = "CHIRP_SERVER"
	defaultTimeout = 30 * time.Second
	drainTimeout   = 30 * time.Second
)

// ErrUsage is returned for unknown commands and bad flags.
var ErrUsage = errors.New("usage error")

// Runner executes one CLI command against a chirp server.
type Runner struct {
	server  string
	api     *client.API
	out     io.Writer
	log     logger.Logger
	newID   func() string
	now     func() time.Time
	timeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput sets where command output is written.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.out = &syncWriter{w: w}
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithIDGenerator replaces the submission id generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithClock replaces the time source used for response times.
func WithClock(fn func() time.Time) Option {
	return func(r *Runner) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRunner creates a Runner for the server at baseURL.
func NewRunner(baseURL string, opts ...Option) *Runner {
	r := &Runner{
		server:  baseURL,
		out:     &syncWriter{w: os.Stdout},
		log:     logger.Get().Named("cli"),
		newID:   uuid.NewString,
		now:     time.Now,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.api = client.New(baseURL, client.WithTimeout(r.timeout))
	return r
}

// Run parses global flags and dispatches to a subcommand.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chirp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", serverFromEnv(), "Base URL of the chirp server")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return ErrUsage
	}

	r := NewRunner(*server, WithOutput(stdout))
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "status":
		return r.Status(ctx)
	case "scores":
		return r.scoresCommand(ctx, rest, stderr)
	case "sing":
		return r.singCommand(ctx, rest, stderr)
	case "learn":
		return r.learnCommand(ctx, rest, stderr)
	case "help":
		fs.Usage()
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func serverFromEnv() string {
	if v := strings.TrimSpace(os.Getenv(EnvServer)); v != "" {
		return v
	}
	return DefaultServer
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprint(w, `Chirp karaoke client

Usage:
  chirp [-server URL] <command> [options]

Commands:
  status                                   Show which backends the server has
  scores -board B [-reset]                 Show or clear a high-score board
  sing -song KEY -wav FILE [-name N]       Sing a WAV recording against a song
  learn -language L -answer TEXT [-name N] Play a language-learning round

Global options:
`)
	fs.PrintDefaults()
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// syncWriter serializes writes from the session reader and the lyric ticker.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
