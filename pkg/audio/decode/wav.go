package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/go-audio/wav"

	"github.com/haivivi/accent/pkg/audio/pcm"
)

// wavFormatPCM is the WAVE_FORMAT_PCM format tag.
const wavFormatPCM = 1

// WAV decodes integer PCM RIFF/WAVE files.
type WAV struct{}

// Name implements Strategy.
func (WAV) Name() string { return "wav" }

// Match implements Strategy.
func (WAV) Match(head []byte) bool {
	return len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE"))
}

// Decode implements Strategy.
func (WAV) Decode(_ context.Context, data []byte) (pcm.Waveform, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return pcm.Waveform{}, errors.New("invalid wav header")
	}
	if d.WavAudioFormat != wavFormatPCM {
		return pcm.Waveform{}, fmt.Errorf("unsupported wav format tag %d", d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return pcm.Waveform{}, fmt.Errorf("read wav samples: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 {
		return pcm.Waveform{}, errors.New("wav has no format")
	}
	return pcm.Waveform{
		Samples:    pcm.FromInts(buf.Data, buf.SourceBitDepth, buf.Format.NumChannels),
		SampleRate: buf.Format.SampleRate,
	}, nil
}
