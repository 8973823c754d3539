package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/accent/pkg/audio/decode"
	"github.com/haivivi/accent/pkg/cli"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output.wav>",
	Short: "Normalise a recording to 16 kHz mono WAV",
	Long: `Decode a recording with the same strategies used for training and
classification, and write the resulting 16 kHz mono waveform as a 16-bit
WAV file. Useful for preparing a corpus and for checking what the
pipeline actually hears.

Examples:
  accent convert interview.mp3 corpus/speaker01.wav
  accent convert clip.m4a clip.wav --ffmpeg ffmpeg`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := getContext(cmd)
		if err != nil {
			return err
		}
		w, err := newDecoder(ctx).DecodeFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := decode.WriteWAV(args[1], w); err != nil {
			return fmt.Errorf("write %s: %w", args[1], err)
		}
		peak := w.Peak()
		if peak == 0 {
			cli.PrintWarning("%s is silent", args[0])
		}
		return outputResult(struct {
			Output     string  `json:"output" yaml:"output"`
			SampleRate int     `json:"sample_rate" yaml:"sample_rate"`
			Samples    int     `json:"samples" yaml:"samples"`
			Duration   string  `json:"duration" yaml:"duration"`
			Peak       float32 `json:"peak" yaml:"peak"`
		}{args[1], w.SampleRate, w.Len(), cli.FormatDuration(w.Duration()), peak})
	},
}
