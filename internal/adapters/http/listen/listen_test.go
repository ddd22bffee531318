package listen_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/dazdaz/chirp-demo-enhanced/internal/adapters/http/listen"
	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/model"
)

// countingRecognizer reads the whole stream and reports the byte count as
// one interim and one final event.
type countingRecognizer struct {
	mu       sync.Mutex
	language string
	fail     string
}

func (c *countingRecognizer) Recognize(ctx context.Context, audio io.Reader, lang string) <-chan model.TranscriptEvent {
	c.mu.Lock()
	c.language = lang
	c.mu.Unlock()

	out := make(chan model.TranscriptEvent)
	go func() {
		defer close(out)
		n, err := io.Copy(io.Discard, audio)
		if err != nil {
			return
		}
		if c.fail != "" {
			out <- model.TranscriptEvent{Error: c.fail}
			return
		}
		out <- model.TranscriptEvent{Transcript: "partial"}
		out <- model.TranscriptEvent{
			IsFinal:    true,
			Transcript: strconv.FormatInt(n, 10),
			Words:      []model.WordToken{{Word: "bytes", StartTime: 0.1, EndTime: 0.4, Confidence: 0.9}},
		}
	}()
	return out
}

func (c *countingRecognizer) lang() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

func dial(srv *httptest.Server, query string) (*websocket.Conn, error) {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/listen" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	return conn, err
}

func readAll(conn *websocket.Conn) ([]map[string]any, error) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var out []map[string]any
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return out, nil
			}
			return out, err
		}
		out = append(out, msg)
	}
}

func newServer(h *listen.Handler) *httptest.Server {
	mux := http.NewServeMux()
	h.Register(mux)
	return httptest.NewServer(mux)
}

func TestListen(t *testing.T) {
	Convey("Given a listen handler with a recognizer", t, func() {
		rec := &countingRecognizer{}
		srv := newServer(listen.New(rec, listen.WithQueueSize(64)))
		defer srv.Close()

		Convey("When a client streams audio and stops", func() {
			conn, err := dial(srv, "?language_code=pt-BR")
			So(err, ShouldBeNil)
			defer conn.Close()

			frame := make([]byte, 320)
			for range 5 {
				So(conn.WriteMessage(websocket.BinaryMessage, frame), ShouldBeNil)
			}
			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"stop"}`)), ShouldBeNil)

			msgs, err := readAll(conn)
			So(err, ShouldBeNil)

			Convey("Then interim and final events arrive before the close", func() {
				So(len(msgs), ShouldEqual, 2)
				So(msgs[0]["isFinal"], ShouldEqual, false)
				So(msgs[1]["isFinal"], ShouldEqual, true)
				So(msgs[1]["transcript"], ShouldEqual, "1600")
				words, ok := msgs[1]["words"].([]any)
				So(ok, ShouldBeTrue)
				So(len(words), ShouldEqual, 1)
			})

			Convey("Then the language code is passed to the recognizer", func() {
				So(rec.lang(), ShouldEqual, "pt-BR")
			})
		})

		Convey("When the language code is missing", func() {
			conn, err := dial(srv, "")
			So(err, ShouldBeNil)
			defer conn.Close()
			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"stop"}`)), ShouldBeNil)
			msgs, err := readAll(conn)
			So(err, ShouldBeNil)
			So(len(msgs), ShouldEqual, 2)
			So(msgs[1]["transcript"], ShouldEqual, "0")
			So(rec.lang(), ShouldEqual, listen.DefaultLanguage)
		})

		Convey("When unknown text messages are sent they are ignored", func() {
			conn, err := dial(srv, "")
			So(err, ShouldBeNil)
			defer conn.Close()
			So(conn.WriteMessage(websocket.TextMessage, []byte(`hello`)), ShouldBeNil)
			So(conn.WriteMessage(websocket.BinaryMessage, make([]byte, 10)), ShouldBeNil)
			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"stop"}`)), ShouldBeNil)
			msgs, err := readAll(conn)
			So(err, ShouldBeNil)
			So(msgs[len(msgs)-1]["transcript"], ShouldEqual, "10")
		})
	})

	Convey("Given a recognizer that fails", t, func() {
		srv := newServer(listen.New(&countingRecognizer{fail: "quota exceeded"}))
		defer srv.Close()

		conn, err := dial(srv, "")
		So(err, ShouldBeNil)
		defer conn.Close()
		So(conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"stop"}`)), ShouldBeNil)

		msgs, err := readAll(conn)
		So(err, ShouldBeNil)
		So(len(msgs), ShouldEqual, 1)
		So(msgs[0]["error"], ShouldEqual, "quota exceeded")
	})

	Convey("Given no recognizer", t, func() {
		srv := newServer(listen.New(nil))
		defer srv.Close()

		conn, err := dial(srv, "")
		So(err, ShouldBeNil)
		defer conn.Close()

		msgs, err := readAll(conn)
		So(err, ShouldBeNil)
		So(len(msgs), ShouldEqual, 1)
		So(msgs[0]["error"], ShouldEqual, listen.NotInitializedMessage)
	})

	Convey("Given a plain HTTP request", t, func() {
		srv := newServer(listen.New(&countingRecognizer{}))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/listen")
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
	})
}
