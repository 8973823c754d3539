package decode

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/haivivi/accent/pkg/audio/pcm"
)

// MP3 decodes MPEG-1/2 Layer III streams. go-mp3 always yields 16-bit
// little-endian stereo.
type MP3 struct{}

// Name implements Strategy.
func (MP3) Name() string { return "mp3" }

// Match implements Strategy. It accepts an ID3v2 tag or an MPEG frame sync.
func (MP3) Match(head []byte) bool {
	if len(head) >= 3 && bytes.Equal(head[:3], []byte("ID3")) {
		return true
	}
	return len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0
}

// Decode implements Strategy.
func (MP3) Decode(_ context.Context, data []byte) (pcm.Waveform, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return pcm.Waveform{}, fmt.Errorf("open mp3: %w", err)
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return pcm.Waveform{}, fmt.Errorf("read mp3: %w", err)
	}
	return pcm.Waveform{
		Samples:    pcm.FromInt16LE(raw, 2),
		SampleRate: d.SampleRate(),
	}, nil
}
