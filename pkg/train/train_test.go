package train

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/haivivi/accent/pkg/accent"
	"github.com/haivivi/accent/pkg/artifact"
	"github.com/haivivi/accent/pkg/audio/decode"
	"github.com/haivivi/accent/pkg/kmeans"
	"github.com/haivivi/accent/pkg/kv"
	"github.com/haivivi/accent/pkg/refindex"
	"github.com/haivivi/accent/pkg/storage"
)

func tone(freq float64, seconds float64) accent.Waveform {
	n := int(seconds * accent.SampleRate)
	s := make([]float32, n)
	for i := range s {
		t := float64(i) / accent.SampleRate
		s[i] = float32(0.3*math.Sin(2*math.Pi*freq*t) + 0.1*math.Sin(2*math.Pi*2*freq*t))
	}
	return accent.Waveform{Samples: s, SampleRate: accent.SampleRate}
}

// writeCorpus writes n valid WAV files and the given number of corrupt ones.
func writeCorpus(t *testing.T, n, corrupt int) string {
	t.Helper()
	dir := t.TempDir()
	freqs := []float64{150, 900, 2500}
	for i := range n {
		path := filepath.Join(dir, fmt.Sprintf("sample_%02d.wav", i))
		if err := decode.WriteWAV(path, tone(freqs[i%len(freqs)]+float64(i), 0.4)); err != nil {
			t.Fatal(err)
		}
	}
	for i := range corrupt {
		path := filepath.Join(dir, fmt.Sprintf("broken_%02d.mp3", i))
		if err := os.WriteFile(path, []byte("this is not audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)
	return dir
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.WAV", "a.mp3", "c.ogg", "d.wav"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}
	os.Mkdir(filepath.Join(dir, "sub.wav"), 0o755)

	files, err := Scan(dir, DefaultExtensions)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a.mp3", "b.WAV", "d.wav"}; !slices.Equal(files, want) {
		t.Errorf("Scan = %v, want %v", files, want)
	}

	if _, err := Scan(filepath.Join(dir, "missing"), DefaultExtensions); err == nil {
		t.Error("Scan of a missing directory should fail")
	}
}

func TestScanFollowsSymlinks(t *testing.T) {
	src, dir := t.TempDir(), t.TempDir()
	target := filepath.Join(src, "speaker01.wav")
	if err := os.WriteFile(target, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	os.Mkdir(filepath.Join(src, "clips.wav"), 0o755)
	links := map[string]string{
		"linked.wav":   target,
		"folder.wav":   filepath.Join(src, "clips.wav"),
		"dangling.mp3": filepath.Join(src, "gone.mp3"),
		"linked.txt":   target,
	}
	for name, to := range links {
		if err := os.Symlink(to, filepath.Join(dir, name)); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
	}

	files, err := Scan(dir, DefaultExtensions)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"dangling.mp3", "linked.wav"}; !slices.Equal(files, want) {
		t.Errorf("Scan = %v, want %v", files, want)
	}
}

func TestRunSkipsCorruptFiles(t *testing.T) {
	dir := writeCorpus(t, 10, 2)
	logger, logs := captureLogger()

	res, err := Run(context.Background(), dir, 3, Options{Logger: logger, Workers: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Features) != 10 || len(res.Files) != 10 {
		t.Fatalf("got %d vectors for %d files, want 10", len(res.Features), len(res.Files))
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("skipped %d, want 2", len(res.Skipped))
	}
	for _, s := range res.Skipped {
		if !errors.Is(s.Err, decode.ErrDecode) {
			t.Errorf("%s: skip reason %v is not a decode error", s.File, s.Err)
		}
	}
	if n := strings.Count(logs.String(), `msg="skip file"`); n != 2 {
		t.Errorf("logged %d skip events, want 2:\n%s", n, logs)
	}
	if res.Index.Len() != 10 {
		t.Errorf("reference table has %d rows", res.Index.Len())
	}
	for i, name := range res.Files {
		c, ok := res.Index.ClusterOf(name)
		if !ok || c != res.Model.Labels()[i] {
			t.Errorf("%s: reference cluster %d, label %d", name, c, res.Model.Labels()[i])
		}
	}
	if !slices.IsSorted(res.Files) {
		t.Errorf("files not in name order: %v", res.Files)
	}
}

func TestRunOrderIndependentOfWorkers(t *testing.T) {
	dir := writeCorpus(t, 9, 1)
	logger, _ := captureLogger()
	a, err := Run(context.Background(), dir, 3, Options{Logger: logger, Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(context.Background(), dir, 3, Options{Logger: logger, Workers: 8})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(a.Index.Entries(), b.Index.Entries()) {
		t.Errorf("1 worker: %v\n8 workers: %v", a.Index.Entries(), b.Index.Entries())
	}
}

func TestRunEmptyCorpus(t *testing.T) {
	dir := writeCorpus(t, 0, 2)
	logger, _ := captureLogger()
	res, err := Run(context.Background(), dir, 3, Options{Logger: logger})
	if !errors.Is(err, kmeans.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if res != nil {
		t.Error("failed run returned a result")
	}

	out := t.TempDir()
	store, _ := storage.NewLocal(out)
	if _, err := Persist(context.Background(), store, artifact.DefaultPaths(), res, nil); err == nil {
		t.Error("Persist of a failed run should fail")
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Errorf("artifacts written after a failed run: %v", entries)
	}
}

func TestRunFewerFilesThanClusters(t *testing.T) {
	dir := writeCorpus(t, 2, 0)
	logger, _ := captureLogger()
	if _, err := Run(context.Background(), dir, 8, Options{Logger: logger}); !errors.Is(err, kmeans.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestRunElbow(t *testing.T) {
	dir := writeCorpus(t, 6, 0)
	logger, _ := captureLogger()
	res, err := Run(context.Background(), dir, 2, Options{
		Logger:   logger,
		Elbow:    true,
		KMeans:   kmeans.Options{Restarts: 2},
		ElbowMax: 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Clamped to the 6 usable recordings.
	if len(res.Elbow) != 5 || res.Elbow[0].K != 2 || res.Elbow[4].K != 6 {
		t.Fatalf("elbow = %+v", res.Elbow)
	}
	if last := res.Elbow[4].Inertia; last > 1e-9 {
		t.Errorf("k = N should give zero inertia, got %g", last)
	}
}

func TestRunProgress(t *testing.T) {
	dir := writeCorpus(t, 4, 1)
	logger, _ := captureLogger()
	var calls, last atomic.Int64
	_, err := Run(context.Background(), dir, 2, Options{
		Logger: logger,
		Progress: ProgressFunc(func(done, total int) {
			calls.Add(1)
			last.Store(int64(done))
			if total != 5 {
				t.Errorf("total = %d", total)
			}
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 5 || last.Load() != 5 {
		t.Errorf("progress calls=%d last=%d", calls.Load(), last.Load())
	}
}

func TestRunCancelled(t *testing.T) {
	dir := writeCorpus(t, 4, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger, _ := captureLogger()
	if _, err := Run(ctx, dir, 2, Options{Logger: logger}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := writeCorpus(t, 9, 1)
	logger, _ := captureLogger()
	res, err := Run(ctx, dir, 3, Options{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}

	store, _ := storage.NewLocal(t.TempDir())
	mirror := kv.NewMemory(nil)
	m, err := Persist(ctx, store, artifact.DefaultPaths(), res, mirror)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if m.NumSamples != 9 || m.Seed != kmeans.DefaultSeed {
		t.Errorf("model metadata: %+v", m)
	}

	cl, err := accent.Load(ctx, store, artifact.DefaultPaths(), accent.Options{Limit: -1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, name := range res.Files {
		got, err := cl.ClassifyFile(ctx, filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		want, _ := res.Index.ClusterOf(name)
		if got.Cluster != want {
			t.Errorf("%s: classified %d, trained %d", name, got.Cluster, want)
		}
		if !slices.Contains(got.Similar, name) {
			t.Errorf("%s missing from its own cluster listing %v", name, got.Similar)
		}
	}

	back, err := refindex.LoadKV(ctx, mirror, m.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(back.Entries(), res.Index.Entries()) {
		t.Errorf("mirror = %v", back.Entries())
	}
}
