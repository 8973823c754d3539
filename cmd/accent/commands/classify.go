package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/accent/pkg/accent"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file>...",
	Short: "Assign recordings to accent clusters",
	Long: `Decode each recording, extract its MFCC fingerprint and report the
nearest cluster together with training samples of the same cluster.

Examples:
  accent classify clip.mp3
  accent classify a.wav b.wav --limit 3 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := getContext(cmd)
		if err != nil {
			return err
		}
		c, err := loadClassifier(cmd, ctx, accent.Options{})
		if err != nil {
			return err
		}

		type fileResult struct {
			File          string `json:"file" yaml:"file"`
			accent.Result `yaml:",inline"`
		}
		if len(args) == 1 {
			res, err := c.ClassifyFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return outputResult(res)
		}
		results := make([]fileResult, 0, len(args))
		for _, path := range args {
			res, err := c.ClassifyFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			results = append(results, fileResult{File: path, Result: res})
		}
		return outputResult(results)
	},
}

func init() {
	classifyCmd.Flags().Int("limit", 0, "number of similar samples to list (default 10, -1 for all)")
}
