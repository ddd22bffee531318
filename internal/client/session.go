package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
)

const (
	listenPath       = "/listen"
	closeWriteWait   = time.Second
	defaultFrameSize = 3200 // 100ms of 16kHz 16-bit mono
)

// Event is one message received on the listen socket.
type Event = model.TranscriptEvent

// Transcript is everything a session received once the server hung up.
type Transcript struct {
	Text  string
	Words []model.WordToken
	Err   error
}

// Session is a live transcription socket.
type Session struct {
	conn    *websocket.Conn
	log     logger.Logger
	onEvent func(Event)

	writeMu   sync.Mutex
	open      atomic.Bool
	closing   atomic.Bool
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}

	mu    sync.Mutex
	text  strings.Builder
	words []model.WordToken
	err   error
}

// Dial opens a listen session on the server at baseURL. http and https base
// URLs map to ws and wss.
func Dial(ctx context.Context, baseURL, language string, opts ...SessionOption) (*Session, error) {
	target, err := listenURL(baseURL, language)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	s := &Session{
		conn: conn,
		log:  logger.Get().Named("session"),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.open.Store(true)

	go s.readLoop()
	return s, nil
}

func listenURL(baseURL, language string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + listenPath
	q := url.Values{}
	if language != "" {
		q.Set("language_code", language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send writes one binary audio frame.
func (s *Session) Send(frame []byte) error {
	if !s.open.Load() {
		return ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// SendPCM streams r in frames of frameBytes. With pace > 0 one frame is sent
// per pace interval, which replays a recording in real time. It returns when r
// is drained, on the first send error or when ctx is done.
func (s *Session) SendPCM(ctx context.Context, r io.Reader, frameBytes int, pace time.Duration) error {
	if frameBytes <= 0 {
		frameBytes = defaultFrameSize
	}
	buf := make([]byte, frameBytes)
	start := time.Now()

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if sendErr := s.Send(buf[:n]); sendErr != nil {
				return sendErr
			}
		}
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		case err != nil:
			return fmt.Errorf("read audio: %w", err)
		}

		if pace > 0 {
			wait := time.Until(start.Add(time.Duration(i+1) * pace))
			if wait <= 0 {
				continue
			}
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
}

// Stop tells the server no more audio is coming. Only the first call sends.
func (s *Session) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if !s.open.Load() {
			err = ErrSessionClosed
			return
		}
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		err = s.conn.WriteJSON(map[string]string{"action": "stop"})
	})
	return err
}

// Done is closed once the server has closed the session.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the server closes the session or ctx is done and returns
// what was transcribed so far.
func (s *Session) Wait(ctx context.Context) Transcript {
	select {
	case <-s.done:
	case <-ctx.Done():
		t := s.snapshot()
		if t.Err == nil {
			t.Err = ctx.Err()
		}
		return t
	}
	return s.snapshot()
}

// Close closes the connection without waiting for the server.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.open.Store(false)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
		err = s.conn.Close()
	})
	return err
}

func (s *Session) snapshot() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	words := make([]model.WordToken, len(s.words))
	copy(words, s.words)
	return Transcript{
		Text:  strings.TrimSpace(s.text.String()),
		Words: words,
		Err:   s.err,
	}
}

func (s *Session) readLoop() {
	defer func() {
		s.open.Store(false)
		_ = s.conn.Close()
		close(s.done)
	}()

	for {
		var ev Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			if !s.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(fmt.Errorf("read event: %w", err))
			}
			return
		}
		s.record(ev)
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
}

func (s *Session) record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case ev.Error != "":
		if s.err == nil {
			s.err = errors.New(ev.Error)
		}
		s.log.Warn(context.Background(), "server reported error", logger.String("error", ev.Error))
	case ev.IsFinal:
		s.text.WriteString(ev.Transcript)
		s.text.WriteString(" ")
		s.words = append(s.words, ev.Words...)
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
