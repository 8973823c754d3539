package decode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/haivivi/accent/pkg/audio/pcm"
)

// FFmpeg decodes anything the ffmpeg binary understands by piping the bytes
// through a subprocess that emits 32-bit float mono at TargetRate.
type FFmpeg struct {
	// Binary is the ffmpeg executable; empty means "ffmpeg" from PATH.
	Binary string
}

// Name implements Strategy.
func (*FFmpeg) Name() string { return "ffmpeg" }

// Match implements Strategy. ffmpeg does its own probing.
func (*FFmpeg) Match([]byte) bool { return true }

// Decode implements Strategy.
func (f *FFmpeg) Decode(ctx context.Context, data []byte) (pcm.Waveform, error) {
	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return pcm.Waveform{}, fmt.Errorf("ffmpeg unavailable: %w", err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vn", "-ac", "1", "-ar", strconv.Itoa(TargetRate),
		"-f", "f32le", "pipe:1",
	}
	cmd := exec.CommandContext(ctx, bin, args...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return pcm.Waveform{}, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return pcm.Waveform{
		Samples:    pcm.FromFloat32LE(stdout.Bytes(), 1),
		SampleRate: TargetRate,
	}, nil
}
