package decode

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/haivivi/accent/pkg/audio/pcm"
)

// WriteWAV writes w as a 16-bit mono PCM WAV file.
func WriteWAV(path string, w pcm.Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, w.SampleRate, 16, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:           pcm.ToInt16(w.Samples),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalise wav: %w", err)
	}
	return f.Close()
}
