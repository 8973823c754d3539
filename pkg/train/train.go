// Package train builds an accent model from a directory of recordings.
//
// Run scans the corpus, decodes and fingerprints every recording on a
// bounded worker pool, skips the files that cannot be decoded, fits the
// cluster model and pairs every surviving file name with its cluster label.
// Persist writes the result as a matched artifact pair.
package train

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/haivivi/accent/pkg/accent"
	"github.com/haivivi/accent/pkg/audio/decode"
	"github.com/haivivi/accent/pkg/kmeans"
	"github.com/haivivi/accent/pkg/metrics"
	"github.com/haivivi/accent/pkg/refindex"
)

// Elbow defaults.
const (
	DefaultElbowMin = 2
	DefaultElbowMax = 20
)

// DefaultExtensions are the file extensions picked up from the corpus.
var DefaultExtensions = []string{".wav", ".mp3"}

// Decoder reads a recording from disk as a 16 kHz mono waveform.
type Decoder interface {
	DecodeFile(ctx context.Context, path string) (accent.Waveform, error)
}

// ProgressReporter receives progress updates while features are extracted.
type ProgressReporter interface {
	OnProgress(done, total int)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(done, total int)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(done, total int) { f(done, total) }

// Options configures Run.
type Options struct {
	// Extensions to include, matched case-insensitively. Default
	// DefaultExtensions.
	Extensions []string
	// Workers bounds concurrent decodes. Default runtime.NumCPU().
	Workers int
	KMeans  kmeans.Options

	// Elbow computes the inertia curve for k in [ElbowMin, ElbowMax]
	// before the final fit.
	Elbow    bool
	ElbowMin int
	ElbowMax int

	// Decoder defaults to decode.New().
	Decoder  Decoder
	Logger   *slog.Logger
	Progress ProgressReporter
	Metrics  *metrics.Metrics
}

func (o *Options) withDefaults() Options {
	out := *o
	if len(out.Extensions) == 0 {
		out.Extensions = DefaultExtensions
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if out.ElbowMin <= 0 {
		out.ElbowMin = DefaultElbowMin
	}
	if out.ElbowMax <= 0 {
		out.ElbowMax = DefaultElbowMax
	}
	if out.KMeans.Seed == 0 {
		out.KMeans.Seed = kmeans.DefaultSeed
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Decoder == nil {
		out.Decoder = decode.New(decode.WithLogger(out.Logger))
	}
	return out
}

// Skip records a corpus file that produced no feature vector.
type Skip struct {
	File string `json:"file" yaml:"file"`
	Err  error  `json:"-" yaml:"-"`
}

// ElbowPoint is the training inertia for one cluster count.
type ElbowPoint struct {
	K       int     `json:"k" yaml:"k"`
	Inertia float64 `json:"inertia" yaml:"inertia"`
}

// Result is a trained model and its reference table.
type Result struct {
	Model *kmeans.Model
	Index *refindex.Index
	// Files are the corpus file names that were used, in training order.
	Files []string
	// Features holds one row per entry of Files.
	Features [][]float64
	Skipped  []Skip
	Elbow    []ElbowPoint
	Seed     uint64
	Duration time.Duration
}

// Scan lists the regular files directly inside dir whose extension is in
// exts, sorted by name. Subdirectories are not descended. Symlinks are
// followed; a dangling link is listed so that Run reports it as skipped.
func Scan(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var files []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !slices.ContainsFunc(exts, func(x string) bool { return strings.EqualFold(x, ext) }) {
			continue
		}
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(dir, e.Name()))
			if err == nil && !info.Mode().IsRegular() {
				continue
			}
		} else if !mode.IsRegular() {
			continue
		}
		files = append(files, e.Name())
	}
	return files, nil
}

// Run trains a k-cluster model from the recordings in dir.
//
// Files that cannot be decoded or fingerprinted are logged and skipped.
// If no file survives, or fewer files than k, Run returns an error wrapping
// kmeans.ErrInsufficientData.
func Run(ctx context.Context, dir string, k int, opts Options) (*Result, error) {
	o := opts.withDefaults()
	start := time.Now()

	files, err := Scan(dir, o.Extensions)
	if err != nil {
		return nil, err
	}
	o.Logger.Info("scan corpus", "dir", dir, "files", len(files))

	vectors, errs, err := extractAll(ctx, dir, files, o)
	if err != nil {
		return nil, err
	}

	res := &Result{Seed: o.KMeans.Seed}
	for i, name := range files {
		if errs[i] != nil {
			o.Logger.Warn("skip file", "file", name, "error", errs[i])
			res.Skipped = append(res.Skipped, Skip{File: name, Err: errs[i]})
			continue
		}
		res.Files = append(res.Files, name)
		res.Features = append(res.Features, vectors[i])
	}
	if len(res.Features) == 0 {
		return nil, fmt.Errorf("train: no usable recordings in %s (%d skipped): %w",
			dir, len(res.Skipped), kmeans.ErrInsufficientData)
	}

	if o.Elbow {
		res.Elbow, err = ElbowCurve(ctx, res.Features, o.ElbowMin, o.ElbowMax, o.KMeans)
		if err != nil {
			return nil, err
		}
	}

	res.Model, err = kmeans.Fit(res.Features, k, o.KMeans)
	if err != nil {
		return nil, fmt.Errorf("train: fit %d clusters on %d recordings: %w", k, len(res.Features), err)
	}
	res.Index, err = refindex.Build(res.Files, res.Model.Labels())
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	o.Metrics.ObserveTraining(len(res.Files), len(res.Skipped), res.Model.Inertia())
	o.Logger.Info("trained",
		"k", k,
		"samples", len(res.Files),
		"skipped", len(res.Skipped),
		"inertia", res.Model.Inertia(),
		"iterations", res.Model.Iterations(),
		"duration", res.Duration)
	return res, nil
}

// extractAll fingerprints files on o.Workers goroutines. Results land in
// per-file slots so their order does not depend on scheduling.
func extractAll(ctx context.Context, dir string, files []string, o Options) ([][]float64, []error, error) {
	vectors := make([][]float64, len(files))
	errs := make([]error, len(files))
	ext := accent.NewExtractor(o.Metrics)

	jobs := make(chan int)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for range min(o.Workers, max(len(files), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				vectors[i], errs[i] = extractOne(ctx, ext, o.Decoder, filepath.Join(dir, files[i]))
				if errors.Is(errs[i], decode.ErrDecode) {
					o.Metrics.DecodeFailed()
				}
				if o.Progress != nil {
					mu.Lock()
					done++
					o.Progress.OnProgress(done, len(files))
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for i := range files {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return vectors, errs, nil
}

func extractOne(ctx context.Context, ext *accent.Extractor, dec Decoder, path string) ([]float64, error) {
	w, err := dec.DecodeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	v, err := ext.Extract(w)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ElbowCurve fits a model for every k in [kMin, kMax] and returns the
// inertias. kMax is clamped to the number of rows.
func ElbowCurve(ctx context.Context, data [][]float64, kMin, kMax int, opts kmeans.Options) ([]ElbowPoint, error) {
	kMin = max(kMin, 1)
	kMax = min(kMax, len(data))
	var points []ElbowPoint
	for k := kMin; k <= kMax; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := kmeans.Fit(data, k, opts)
		if err != nil {
			return nil, fmt.Errorf("elbow k=%d: %w", k, err)
		}
		points = append(points, ElbowPoint{K: k, Inertia: m.Inertia()})
	}
	return points, nil
}
