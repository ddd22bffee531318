package client

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Audio format expected by the listen socket.
const (
	SampleRate     = 16000
	BytesPerSample = 2
)

const wavFormatPCM = 1

// ReadWAV decodes a PCM WAV file into the socket's format: mono 16kHz
// 16-bit little-endian samples. Multi-channel audio is averaged and other
// sample rates are linearly resampled.
func ReadWAV(r io.ReadSeeker) ([]byte, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: audio format %d is not PCM", ErrInvalidWAV, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	mono := downmix(buf, int(dec.NumChans), int(dec.BitDepth))
	mono = resample(mono, int(dec.SampleRate), SampleRate)
	return encodePCM16(mono), nil
}

// PCMDuration returns the playing time of n bytes of socket audio.
func PCMDuration(n int) time.Duration {
	samples := n / BytesPerSample
	return time.Duration(samples) * time.Second / SampleRate
}

// downmix averages interleaved channels into samples in [-1, 1].
func downmix(buf *audio.IntBuffer, channels, bitDepth int) []float64 {
	if channels < 1 {
		channels = 1
	}
	if bitDepth < 8 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := buf.Data[i*channels+c]
			if bitDepth == 8 {
				// 8-bit WAV samples are unsigned
				v -= 128
			}
			sum += float64(v)
		}
		out[i] = sum / float64(channels) / scale
	}
	return out
}

// resample converts between rates by linear interpolation.
func resample(in []float64, from, to int) []float64 {
	if from <= 0 || from == to || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]float64, n)
	ratio := float64(from) / float64(to)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = in[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}

func encodePCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := math.Round(s * -math.MinInt16)
		v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(int16(v)))
	}
	return out
}
