package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()

		Convey("When logging at info", func() {
			Get().Info(context.Background(), "session started", String("language", "en-US"), Int("frames", 3))

			Convey("Then the text line carries fields and source", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "session started")
				So(out, ShouldContainSubstring, "language=en-US")
				So(out, ShouldContainSubstring, "frames=3")
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the level", func() {
			Get().Debug(context.Background(), "hidden")
			So(buf.String(), ShouldNotContainSubstring, "hidden")

			So(SetLevelString("debug"), ShouldBeNil)
			Get().Debug(context.Background(), "visible")
			So(buf.String(), ShouldContainSubstring, "visible")
		})

		Convey("When naming a logger", func() {
			Named("listen").Warn(context.Background(), "queue full", Error(errors.New("boom")))
			So(buf.String(), ShouldContainSubstring, "component=listen")
			So(buf.String(), ShouldContainSubstring, "error=boom")
		})
	})
}

func TestLoggerFormats(t *testing.T) {
	Convey("Given a JSON logger", t, func() {
		So(SetLevelString("info"), ShouldBeNil)
		var buf bytes.Buffer
		l := New(WithWriter(&buf), WithFormat("JSON"))
		l.Error(context.Background(), "failed", Bool("retry", false))

		Convey("Then output is one JSON object per line", func() {
			var rec map[string]any
			So(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec), ShouldBeNil)
			So(rec["msg"], ShouldEqual, "failed")
			So(rec["level"], ShouldEqual, "ERROR")
			So(rec["retry"], ShouldEqual, false)
		})
	})

	Convey("Given a no-op logger", t, func() {
		l := Nop()
		So(func() {
			l.Info(context.Background(), "x")
			l.Fatal(context.Background(), "y")
			l.Named("z").Error(nil, "w") //nolint:staticcheck // nil ctx is tolerated
		}, ShouldNotPanic)
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		for _, lvl := range []string{"debug", "INFO", "", "warn", "warning", "error"} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("loud"), ShouldNotBeNil)
		So(SetLevelString("info"), ShouldBeNil)
	})
}
