package decode_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/accent/pkg/audio/decode"
	"github.com/haivivi/accent/pkg/audio/pcm"
)

func tone(freq float64, rate int, d float64) pcm.Waveform {
	n := int(float64(rate) * d)
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(0.4 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return pcm.Waveform{Samples: s, SampleRate: rate}
}

func TestDecodeWAV16k(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := decode.WriteWAV(path, tone(440, 16000, 0.5)); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	w, err := decode.New().DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if w.SampleRate != decode.TargetRate {
		t.Errorf("SampleRate = %d", w.SampleRate)
	}
	if w.Len() != 8000 {
		t.Errorf("Len = %d, want 8000", w.Len())
	}
	if p := w.Peak(); p < 0.35 || p > 0.45 {
		t.Errorf("Peak = %f, want about 0.4", p)
	}
}

func TestDecodeWAVResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone48k.wav")
	if err := decode.WriteWAV(path, tone(300, 48000, 1)); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	w, err := decode.New().DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if w.SampleRate != 16000 {
		t.Fatalf("SampleRate = %d", w.SampleRate)
	}
	if w.Len() > 16000 || w.Len() < 15200 {
		t.Errorf("Len = %d, want about 16000", w.Len())
	}
}

// Converting a 48 kHz file writes a 16 kHz file that decodes unchanged.
func TestConvertRewritesAtTargetRate(t *testing.T) {
	dir := t.TempDir()
	src, dst := filepath.Join(dir, "in.wav"), filepath.Join(dir, "out.wav")
	if err := decode.WriteWAV(src, tone(300, 48000, 1)); err != nil {
		t.Fatal(err)
	}
	d := decode.New()
	w, err := d.DecodeFile(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if err := decode.WriteWAV(dst, w); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	back, err := d.DecodeFile(context.Background(), dst)
	if err != nil {
		t.Fatal(err)
	}
	if back.SampleRate != decode.TargetRate || back.Len() != w.Len() {
		t.Errorf("rewritten = %d samples at %d Hz, want %d at %d", back.Len(), back.SampleRate, w.Len(), decode.TargetRate)
	}
	if diff := math.Abs(float64(back.Peak() - w.Peak())); diff > 1e-3 {
		t.Errorf("peak drifted by %f", diff)
	}

	if err := decode.WriteWAV(filepath.Join(dir, "missing", "x.wav"), w); err == nil {
		t.Error("WriteWAV into a missing directory should fail")
	}
}

func TestDecodeCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.wav")
	if err := os.WriteFile(path, []byte("this is not audio at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := decode.New().DecodeFile(context.Background(), path)
	if !errors.Is(err, decode.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	var derr *decode.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected *decode.Error, got %T", err)
	}
	if derr.Source != path {
		t.Errorf("Source = %q", derr.Source)
	}
	if len(derr.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %v", derr.Failures)
	}
	for i, name := range []string{"wav", "mp3"} {
		if derr.Failures[i].Strategy != name {
			t.Errorf("failure %d strategy = %q, want %q", i, derr.Failures[i].Strategy, name)
		}
		if !errors.Is(derr.Failures[i].Err, decode.ErrNoMatch) {
			t.Errorf("failure %d err = %v, want ErrNoMatch", i, derr.Failures[i].Err)
		}
	}
}

func TestDecodeTruncatedHeader(t *testing.T) {
	// Sniffs as WAV but carries no fmt chunk.
	data := []byte("RIFF\x04\x00\x00\x00WAVE")
	_, err := decode.New().Decode(context.Background(), data)
	if !errors.Is(err, decode.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	var derr *decode.Error
	errors.As(err, &derr)
	if errors.Is(derr.Failures[0].Err, decode.ErrNoMatch) {
		t.Errorf("wav strategy should have attempted the decode: %v", derr.Failures[0].Err)
	}
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := decode.New().DecodeFile(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	var derr *decode.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected *decode.Error, got %v", err)
	}
	if derr.Failures[0].Strategy != "read" {
		t.Errorf("strategy = %q, want read", derr.Failures[0].Strategy)
	}
}

type fixed struct {
	name string
	w    pcm.Waveform
	err  error
}

func (f fixed) Name() string      { return f.name }
func (f fixed) Match([]byte) bool { return true }

func (f fixed) Decode(context.Context, []byte) (pcm.Waveform, error) { return f.w, f.err }

func TestStrategyOrder(t *testing.T) {
	good := pcm.Waveform{Samples: []float32{0.1, 0.2}, SampleRate: 16000}
	d := decode.New(decode.WithStrategies(
		fixed{name: "first", err: errors.New("boom")},
		fixed{name: "empty", w: pcm.Waveform{SampleRate: 16000}},
		fixed{name: "third", w: good},
		fixed{name: "never", err: errors.New("should not run")},
	))
	if got := d.Strategies(); len(got) != 4 || got[0] != "first" {
		t.Fatalf("Strategies() = %v", got)
	}
	w, err := d.Decode(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if w.Len() != 2 {
		t.Errorf("got %d samples, want 2", w.Len())
	}
}

func TestDecodeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := decode.New().Decode(ctx, []byte("RIFF"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	d := decode.New(decode.WithStrategies(&decode.FFmpeg{Binary: "/nonexistent/ffmpeg"}))
	_, err := d.Decode(context.Background(), []byte("whatever"))
	var derr *decode.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected *decode.Error, got %v", err)
	}
	if len(derr.Failures) != 1 || derr.Failures[0].Strategy != "ffmpeg" {
		t.Errorf("failures = %v", derr.Failures)
	}
}
