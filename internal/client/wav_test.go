package client

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	. "github.com/smartystreets/goconvey/convey"
)

func writeTestWAV(t *testing.T, rate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
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

func samples16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

func TestReadWAV(t *testing.T) {
	Convey("Given an 8kHz stereo recording", t, func() {
		data := make([]int, 0, 1600)
		for i := 0; i < 800; i++ {
			data = append(data, 1000, 3000)
		}
		path := writeTestWAV(t, 8000, 2, data)

		f, err := os.Open(path)
		So(err, ShouldBeNil)
		defer f.Close()

		pcm, err := ReadWAV(f)
		So(err, ShouldBeNil)

		Convey("Then it is down-mixed and resampled to 16kHz", func() {
			s := samples16(pcm)
			So(len(s), ShouldEqual, 1600)
			So(s[0], ShouldEqual, 2000)
			So(s[len(s)/2], ShouldEqual, 2000)
			So(s[len(s)-1], ShouldEqual, 2000)
			So(PCMDuration(len(pcm)), ShouldEqual, 100*time.Millisecond)
		})
	})

	Convey("Given a 16kHz mono recording", t, func() {
		path := writeTestWAV(t, SampleRate, 1, []int{0, 16384, -16384, 32767})
		f, err := os.Open(path)
		So(err, ShouldBeNil)
		defer f.Close()

		pcm, err := ReadWAV(f)
		So(err, ShouldBeNil)

		Convey("Then the samples pass through", func() {
			So(samples16(pcm), ShouldResemble, []int16{0, 16384, -16384, 32767})
		})
	})

	Convey("Given input that is not a WAV file", t, func() {
		_, err := ReadWAV(bytes.NewReader([]byte("definitely not riff data")))
		So(errors.Is(err, ErrInvalidWAV), ShouldBeTrue)
	})
}

func TestResample(t *testing.T) {
	Convey("Given a ramp at 8kHz", t, func() {
		out := resample([]float64{0, 1, 2, 3}, 8000, 16000)

		Convey("Then new samples are interpolated between neighbours", func() {
			So(out, ShouldResemble, []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 3})
		})
	})

	Convey("Given equal rates", t, func() {
		in := []float64{0.1, 0.2}
		So(resample(in, SampleRate, SampleRate), ShouldResemble, in)
	})
}

func TestListenURL(t *testing.T) {
	Convey("Given server base URLs", t, func() {
		u, err := listenURL("http://localhost:8080", "fr-FR")
		So(err, ShouldBeNil)
		So(u, ShouldEqual, "ws://localhost:8080/listen?language_code=fr-FR")

		u, err = listenURL("https://chirp.example.com/app/", "")
		So(err, ShouldBeNil)
		So(u, ShouldEqual, "wss://chirp.example.com/app/listen")

		_, err = listenURL("ftp://host", "en-US")
		So(err, ShouldNotBeNil)
	})
}
