package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxUtteranceBytes caps one recognize call at 55s of audio, under
// the synchronous API's one minute limit.
const DefaultMaxUtteranceBytes = 55 * SampleRate * BytesPerSample

// Utterance is a span of speech cut from a PCM stream.
type Utterance struct {
	PCM    []byte
	Offset int // byte offset of PCM[0] in the stream
}

// OffsetSeconds returns the utterance start relative to the stream start.
func (u Utterance) OffsetSeconds() float64 {
	return BytesToSeconds(u.Offset)
}

// SegmentUtterances reads PCM from audio until EOF, cuts it into utterances
// with an energy VAD and calls fn for each. The frames that confirmed speech
// start are kept, so words are not clipped. Trailing speech is flushed at
// EOF. Utterances longer than maxBytes are split.
func SegmentUtterances(ctx context.Context, audio io.Reader, cfg VADConfig, maxBytes int, fn func(context.Context, Utterance) error) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUtteranceBytes
	}
	vad := NewVAD(cfg)
	frame := make([]byte, cfg.FrameBytes())

	var (
		pos          int
		pending      []byte
		pendingStart int
		utt          []byte
		uttStart     int
	)

	flush := func() error {
		if len(utt) == 0 {
			return nil
		}
		u := Utterance{PCM: utt, Offset: uttStart}
		utt = nil
		return fn(ctx, u)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(audio, frame)
		if n > 0 {
			f := frame[:n]
			ev := vad.ProcessFrame(f)

			switch {
			case ev == VADSpeechStart:
				if len(pending) == 0 {
					pendingStart = pos
				}
				utt = append(pending, f...)
				uttStart = pendingStart
				pending = nil
			case vad.IsSpeaking() || ev == VADSpeechEnd:
				if utt == nil {
					uttStart = pos
				}
				utt = append(utt, f...)
			case vad.speechFrames > 0:
				if len(pending) == 0 {
					pendingStart = pos
				}
				pending = append(pending, f...)
			default:
				pending = pending[:0]
			}

			if ev == VADSpeechEnd || len(utt) >= maxBytes {
				if ferr := flush(); ferr != nil {
					return ferr
				}
			}
			pos += n
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return flush()
			}
			return fmt.Errorf("read audio: %w", err)
		}
	}
}
