// Package listen serves the live transcription socket. Clients stream
// 16kHz 16-bit mono PCM as binary frames, send {"action":"stop"} when done
// and receive transcript events until the server closes the socket.
package listen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/mq/queue"
	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/speech"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

// Defaults for a session.
const (
	DefaultLanguage  = "en-US"
	defaultQueueSize = 512
	defaultReadLimit = 1 << 20
	closeGracePeriod = time.Second
)

// Event kinds recorded in metrics.
const (
	kindFinal   = "final"
	kindInterim = "interim"
	kindError   = "error"
)

// NotInitializedMessage is sent to clients when no recognizer is configured.
const NotInitializedMessage = "Speech client not initialized"

var errClientGone = errors.New("client disconnected")

type controlMessage struct {
	Action string `json:"action"`
}

type errorMessage struct {
	Error string `json:"error"`
}

// Handler upgrades /listen requests and proxies audio to a Recognizer.
type Handler struct {
	recognizer speech.Recognizer
	upgrader   websocket.Upgrader
	queueSize  int
	readLimit  int64
	log        logger.Logger
}

// New creates a Handler. A nil recognizer is allowed: sessions are then
// told that speech is unavailable and closed.
func New(recognizer speech.Recognizer, opts ...Option) *Handler {
	h := &Handler{
		recognizer: recognizer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		queueSize: defaultQueueSize,
		readLimit: defaultReadLimit,
		log:       logger.Get().Named("listen"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register attaches the socket route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("/listen", h)
}

// ServeHTTP handles one transcription session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.log.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	lang := r.URL.Query().Get("language_code")
	if lang == "" {
		lang = DefaultLanguage
	}
	id := uuid.NewString()
	log := h.log.Named("session")
	ctx := r.Context()

	if h.recognizer == nil {
		metrics.RecordTranscriptEvent(kindError)
		_ = conn.WriteJSON(errorMessage{Error: NotInitializedMessage})
		closeSocket(conn, websocket.CloseNormalClosure, "")
		return
	}

	start := time.Now()
	metrics.RecordListenSessionStart(lang)
	defer func() { metrics.RecordListenSessionEnd(time.Since(start)) }()
	log.Info(ctx, "listen session started", logger.String("session_id", id), logger.String("language", lang))

	conn.SetReadLimit(h.readLimit)
	err = h.run(ctx, conn, lang)
	switch {
	case err == nil:
		log.Info(ctx, "listen session finished", logger.String("session_id", id), logger.Duration("elapsed", time.Since(start)))
	case errors.Is(err, errClientGone), errors.Is(err, context.Canceled):
		log.Debug(ctx, "listen session aborted", logger.String("session_id", id), logger.Error(err))
	default:
		metrics.RecordErrorByComponent("listen", "session")
		log.Warn(ctx, "listen session failed", logger.String("session_id", id), logger.Error(err))
	}
}

// run pumps socket frames into a queue that feeds the recognizer, and
// writes recognizer events back until the recognizer finishes.
func (h *Handler) run(ctx context.Context, conn *websocket.Conn, lang string) error {
	q := queue.NewInMemoryQueue(queue.WithCapacity(h.queueSize), queue.WithoutCopy())
	defer func() { _ = q.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	events := h.recognizer.Recognize(gctx, queue.NewReader(gctx, q), lang)
	done := make(chan struct{})

	g.Go(func() error {
		return readFrames(gctx, conn, q, done)
	})

	g.Go(func() error {
		var writeErr error
		for ev := range events {
			metrics.RecordTranscriptEvent(eventKind(ev))
			if writeErr == nil {
				writeErr = conn.WriteJSON(ev)
			}
		}
		close(done)
		closeSocket(conn, websocket.CloseNormalClosure, "")
		_ = conn.Close()
		if writeErr != nil {
			return errors.Join(errClientGone, writeErr)
		}
		return nil
	})

	return g.Wait()
}

// readFrames enqueues binary frames until the client stops or goes away.
// A full queue drops the frame.
func readFrames(ctx context.Context, conn *websocket.Conn, q *queue.InMemoryQueue, done <-chan struct{}) error {
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			_ = q.Close()
			select {
			case <-done:
				return nil
			default:
			}
			return errors.Join(errClientGone, err)
		}

		switch typ {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			metrics.RecordAudioFrame(len(data))
			switch err := q.Enqueue(ctx, data); {
			case errors.Is(err, queue.ErrFull):
				metrics.RecordAudioFrameDropped()
			case err != nil && !errors.Is(err, queue.ErrClosed):
				return err
			}
		case websocket.TextMessage:
			var msg controlMessage
			if json.Unmarshal(data, &msg) == nil && msg.Action == "stop" {
				_ = q.Close()
			}
		}
	}
}

func eventKind(ev model.TranscriptEvent) string {
	switch {
	case ev.Error != "":
		return kindError
	case ev.IsFinal:
		return kindFinal
	default:
		return kindInterim
	}
}

func closeSocket(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
}
