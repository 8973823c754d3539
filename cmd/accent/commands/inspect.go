package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/accent/pkg/accent"
	"github.com/haivivi/accent/pkg/kv"
	"github.com/haivivi/accent/pkg/refindex"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show model metadata and cluster sizes",
	Long: `Load the model and reference table, validate them as a pair and print
the model metadata with the number of training samples per cluster.

With a kv directory configured, the reference mirror of the model's run is
checked against the reference table.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := getContext(cmd)
		if err != nil {
			return err
		}
		c, err := loadClassifier(cmd, ctx, accent.Options{})
		if err != nil {
			return err
		}
		info := c.Info()

		report := struct {
			RunID      string  `json:"run_id" yaml:"run_id"`
			Version    int     `json:"version" yaml:"version"`
			CreatedAt  string  `json:"created_at" yaml:"created_at"`
			K          int     `json:"k" yaml:"k"`
			SampleRate int     `json:"sample_rate" yaml:"sample_rate"`
			FeatureDim int     `json:"feature_dim" yaml:"feature_dim"`
			Seed       uint64  `json:"seed" yaml:"seed"`
			Samples    int     `json:"samples" yaml:"samples"`
			Inertia    float64 `json:"inertia" yaml:"inertia"`
			Iterations int     `json:"iterations" yaml:"iterations"`
			Checksum   string  `json:"checksum" yaml:"checksum"`
			Sizes      []int   `json:"cluster_sizes" yaml:"cluster_sizes"`
			Mirror     string  `json:"mirror,omitempty" yaml:"mirror,omitempty"`
		}{
			RunID:      info.RunID,
			Version:    info.Version,
			CreatedAt:  info.CreatedAt.Format(time.RFC3339),
			K:          info.K,
			SampleRate: info.SampleRate,
			FeatureDim: info.FeatureDim,
			Seed:       info.Seed,
			Samples:    info.NumSamples,
			Inertia:    info.Inertia,
			Iterations: info.Iterations,
			Checksum:   fmt.Sprintf("%016x", info.Checksum),
			Sizes:      c.Index().Counts(c.K()),
		}

		mirror, err := openMirror(ctx)
		if err != nil {
			return err
		}
		if mirror != nil {
			defer mirror.Close()
			report.Mirror, err = checkMirror(cmd, mirror, info.RunID, c.Index())
			if err != nil {
				return err
			}
		}
		return outputResult(report)
	},
}

func checkMirror(cmd *cobra.Command, store kv.Store, runID string, idx *refindex.Index) (string, error) {
	n, err := kv.Count(cmd.Context(), store, refindex.Prefix(runID))
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "absent", nil
	}
	back, err := refindex.LoadKV(cmd.Context(), store, runID)
	if err != nil {
		return "", err
	}
	want := idx.Entries()
	got := back.Entries()
	if len(got) != len(want) {
		return fmt.Sprintf("stale: %d rows, reference table has %d", len(got), len(want)), nil
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Sprintf("stale: row %d is %s/%d, reference table has %s/%d",
				i, got[i].ID, got[i].Cluster, want[i].ID, want[i].Cluster), nil
		}
	}
	return fmt.Sprintf("ok (%d rows)", n), nil
}

func init() {
	inspectCmd.Flags().String("kv-dir", "", "badger directory holding reference mirrors")
}
