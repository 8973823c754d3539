// Package decode turns encoded audio (WAV, MP3, or anything ffmpeg reads)
// into a 16 kHz mono pcm.Waveform.
//
// A Decoder holds an ordered list of strategies. Each strategy is tried in
// turn; the first one that produces samples wins. When all fail, the
// returned *Error lists what every strategy reported, and matches ErrDecode
// with errors.Is.
package decode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/haivivi/accent/pkg/audio/pcm"
	"github.com/haivivi/accent/pkg/audio/resampler"
)

// TargetRate is the sample rate every decoded waveform is converted to.
const TargetRate = 16000

var (
	// ErrDecode is matched by every decode failure.
	ErrDecode = errors.New("decode: cannot decode audio")

	// ErrNoMatch is recorded for a strategy whose format sniffing rejected
	// the input.
	ErrNoMatch = errors.New("format not recognised")

	// ErrNoSamples is recorded when a strategy parsed the container but
	// found no audio.
	ErrNoSamples = errors.New("no samples")
)

// StrategyFailure is the outcome of one strategy that did not succeed.
type StrategyFailure struct {
	Strategy string
	Err      error
}

func (f StrategyFailure) String() string {
	return f.Strategy + ": " + f.Err.Error()
}

// Error reports a failed decode with every strategy's failure in order.
type Error struct {
	Source   string
	Failures []StrategyFailure
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("decode ")
	sb.WriteString(e.Source)
	if len(e.Failures) == 0 {
		sb.WriteString(": no strategies")
		return sb.String()
	}
	sb.WriteString(": ")
	for i, f := range e.Failures {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(f.String())
	}
	return sb.String()
}

// Unwrap makes errors.Is(err, ErrDecode) hold.
func (e *Error) Unwrap() error { return ErrDecode }

// Strategy decodes one family of formats to mono samples at their native
// sample rate.
type Strategy interface {
	// Name identifies the strategy in failure reports.
	Name() string
	// Match reports whether the leading bytes look like this format.
	Match(head []byte) bool
	// Decode parses data into a mono waveform.
	Decode(ctx context.Context, data []byte) (pcm.Waveform, error)
}

// Decoder converts encoded audio to 16 kHz mono.
// A Decoder is safe for concurrent use.
type Decoder struct {
	strategies []Strategy
	logger     *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithFFmpeg appends an ffmpeg subprocess strategy using the given binary.
// An empty path means "ffmpeg" from PATH.
func WithFFmpeg(path string) Option {
	return func(d *Decoder) {
		d.strategies = append(d.strategies, &FFmpeg{Binary: path})
	}
}

// WithStrategies replaces the strategy list.
func WithStrategies(s ...Strategy) Option {
	return func(d *Decoder) {
		d.strategies = s
	}
}

// WithLogger sets the logger used for per-strategy debug output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		d.logger = l
	}
}

// New returns a Decoder trying WAV then MP3, followed by any strategies
// added through options.
func New(opts ...Option) *Decoder {
	d := &Decoder{
		strategies: []Strategy{WAV{}, MP3{}},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Strategies returns the names of the configured strategies in order.
func (d *Decoder) Strategies() []string {
	names := make([]string, len(d.strategies))
	for i, s := range d.strategies {
		names[i] = s.Name()
	}
	return names
}

// DecodeFile reads and decodes the file at path.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (pcm.Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pcm.Waveform{}, &Error{
			Source:   path,
			Failures: []StrategyFailure{{Strategy: "read", Err: err}},
		}
	}
	return d.decode(ctx, path, data)
}

// Decode decodes in-memory audio bytes.
func (d *Decoder) Decode(ctx context.Context, data []byte) (pcm.Waveform, error) {
	return d.decode(ctx, "<bytes>", data)
}

func (d *Decoder) decode(ctx context.Context, source string, data []byte) (pcm.Waveform, error) {
	head := data
	if len(head) > 16 {
		head = head[:16]
	}

	derr := &Error{Source: source}
	for _, s := range d.strategies {
		if err := ctx.Err(); err != nil {
			return pcm.Waveform{}, err
		}
		if !s.Match(head) {
			derr.Failures = append(derr.Failures, StrategyFailure{Strategy: s.Name(), Err: ErrNoMatch})
			continue
		}
		w, err := s.Decode(ctx, data)
		if err == nil && w.Empty() {
			err = ErrNoSamples
		}
		if err != nil {
			d.logger.Debug("decode strategy failed", "source", source, "strategy", s.Name(), "error", err)
			derr.Failures = append(derr.Failures, StrategyFailure{Strategy: s.Name(), Err: err})
			continue
		}
		out, err := toTarget(w)
		if err != nil {
			derr.Failures = append(derr.Failures, StrategyFailure{Strategy: s.Name(), Err: err})
			continue
		}
		return out, nil
	}
	return pcm.Waveform{}, derr
}

func toTarget(w pcm.Waveform) (pcm.Waveform, error) {
	if w.SampleRate == TargetRate {
		return w, nil
	}
	samples, err := resampler.Resample(w.Samples, w.SampleRate, TargetRate)
	if err != nil {
		return pcm.Waveform{}, fmt.Errorf("resample %d Hz: %w", w.SampleRate, err)
	}
	return pcm.Waveform{Samples: samples, SampleRate: TargetRate}, nil
}
