package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/haivivi/accent/pkg/accent"
	"github.com/haivivi/accent/pkg/cli"
	"github.com/haivivi/accent/pkg/kmeans"
	"github.com/haivivi/accent/pkg/train"
)

var trainCmd = &cobra.Command{
	Use:   "train [corpus]",
	Short: "Fit the accent model from a directory of recordings",
	Long: `Extract MFCC fingerprints from every .wav/.mp3 file directly inside the
corpus directory, cluster them and store the model and reference table.

Files that cannot be decoded are logged and skipped. The run fails, and
nothing is written, when no file can be used.

Examples:
  accent train data/samples
  accent train data/samples --clusters 12 --elbow
  accent train --corpus data/samples --store models --kv-dir models/kv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrain,
}

type trainSummary struct {
	RunID      string             `json:"run_id" yaml:"run_id"`
	Corpus     string             `json:"corpus" yaml:"corpus"`
	Clusters   int                `json:"clusters" yaml:"clusters"`
	Samples    int                `json:"samples" yaml:"samples"`
	Skipped    []string           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Inertia    float64            `json:"inertia" yaml:"inertia"`
	Iterations int                `json:"iterations" yaml:"iterations"`
	Converged  bool               `json:"converged" yaml:"converged"`
	Sizes      []int              `json:"cluster_sizes" yaml:"cluster_sizes"`
	Elbow      []train.ElbowPoint `json:"elbow,omitempty" yaml:"elbow,omitempty"`
	Model      string             `json:"model" yaml:"model"`
	Reference  string             `json:"reference" yaml:"reference"`
	Duration   string             `json:"duration" yaml:"duration"`
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, err := getContext(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		ctx.Corpus = args[0]
	}
	if ctx.Corpus == "" {
		return fmt.Errorf("no corpus directory: pass it as an argument or set 'corpus' in the context")
	}
	k := ctx.Clusters
	if k == 0 {
		k = accent.DefaultClusters
	}

	workers, _ := cmd.Flags().GetInt("workers")
	restarts, _ := cmd.Flags().GetInt("restarts")
	elbow, _ := cmd.Flags().GetBool("elbow")
	elbowMax, _ := cmd.Flags().GetInt("elbow-max")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	store, err := ctx.OpenStore()
	if err != nil {
		return err
	}
	mirror, err := openMirror(ctx)
	if err != nil {
		return err
	}
	if mirror != nil {
		defer mirror.Close()
	}

	opts := train.Options{
		Workers:  workers,
		KMeans:   kmeans.Options{Seed: ctx.Seed, Restarts: restarts},
		Elbow:    elbow,
		ElbowMax: elbowMax,
		Decoder:  newDecoder(ctx),
		Logger:   slog.Default(),
	}

	var (
		progress *mpb.Progress
		bar      *mpb.Bar
	)
	if !noProgress {
		progress, bar, opts.Progress = newProgressBar(cmd, ctx.Corpus)
	}
	printVerbose("training %d clusters from %s", k, ctx.Corpus)

	res, err := train.Run(cmd.Context(), ctx.Corpus, k, opts)
	if progress != nil {
		if !bar.Completed() {
			bar.Abort(false)
		}
		progress.Wait()
	}
	if err != nil {
		return err
	}

	if elbow {
		fmt.Fprintln(os.Stderr, elbowChart(res.Elbow, k))
	}

	m, err := train.Persist(cmd.Context(), store, ctx.ArtifactPaths(), res, mirror)
	if err != nil {
		return err
	}

	summary := trainSummary{
		RunID:      m.RunID,
		Corpus:     ctx.Corpus,
		Clusters:   k,
		Samples:    len(res.Files),
		Inertia:    res.Model.Inertia(),
		Iterations: res.Model.Iterations(),
		Converged:  res.Model.Converged(),
		Sizes:      res.Index.Counts(k),
		Elbow:      res.Elbow,
		Model:      ctx.ArtifactPaths().Model,
		Reference:  ctx.ArtifactPaths().Reference,
		Duration:   cli.FormatDuration(res.Duration),
	}
	for _, s := range res.Skipped {
		summary.Skipped = append(summary.Skipped, s.File)
	}
	if len(res.Skipped) > 0 {
		cli.PrintWarning("%d of %d files skipped (see log)", len(res.Skipped), len(res.Skipped)+len(res.Files))
	}
	return outputResult(summary)
}

// newProgressBar renders extraction progress on stderr. The bar is sized
// on the first update, when the number of files is known.
func newProgressBar(cmd *cobra.Command, corpus string) (*mpb.Progress, *mpb.Bar, train.ProgressReporter) {
	p := mpb.NewWithContext(cmd.Context(), mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name("Extracting: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)
	start := time.Now()
	report := train.ProgressFunc(func(done, total int) {
		if done == 1 {
			bar.SetTotal(int64(total), false)
		}
		bar.SetCurrent(int64(done))
		if done == total {
			bar.SetTotal(int64(total), true)
			slog.Debug("extraction finished", "corpus", corpus, "files", total, "elapsed", time.Since(start))
		}
	})
	return p, bar, report
}

func elbowChart(points []train.ElbowPoint, k int) string {
	bars := make([]cli.Bar, len(points))
	for i, p := range points {
		bars[i] = cli.Bar{Label: strconv.Itoa(p.K), Value: p.Inertia}
	}
	return cli.BarChart{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  "Elbow curve (inertia by cluster count)",
		Bars:   bars,
		Mark:   strconv.Itoa(k),
		Help:   fmt.Sprintf("training with k = %d; pick k where the curve flattens", k),
	}.Render()
}

func init() {
	trainCmd.Flags().String("corpus", "", "training directory")
	trainCmd.Flags().IntP("clusters", "k", 0, "number of clusters (default 8)")
	trainCmd.Flags().Uint64("seed", 0, "k-means seed (default 42)")
	trainCmd.Flags().Int("restarts", 0, "k-means++ restarts (default 10)")
	trainCmd.Flags().Int("workers", 0, "concurrent decoders (default NumCPU)")
	trainCmd.Flags().Bool("elbow", false, "compute and show the elbow curve before training")
	trainCmd.Flags().Int("elbow-max", train.DefaultElbowMax, "largest k on the elbow curve")
	trainCmd.Flags().String("kv-dir", "", "badger directory to mirror the reference table into")
	trainCmd.Flags().Bool("no-progress", false, "disable the progress bar")
}
