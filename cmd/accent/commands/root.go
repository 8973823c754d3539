package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/haivivi/accent/pkg/accent"
	"github.com/haivivi/accent/pkg/artifact"
	"github.com/haivivi/accent/pkg/audio/decode"
	"github.com/haivivi/accent/pkg/cli"
	"github.com/haivivi/accent/pkg/kv"
)

const appName = "accent"

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	outputJSON  bool
	verbose     bool

	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "accent",
	Short: "Unsupervised accent clustering of speech recordings",
	Long: `accent groups speech recordings by accent.

Training extracts a 13-coefficient MFCC fingerprint from every WAV/MP3 file in
a corpus directory, clusters the fingerprints with k-means and stores the
model together with a filename,cluster reference table. Classification
assigns a new recording to the nearest cluster and lists training samples
from the same cluster.

Configuration is stored in ~/.accent/accent/ and supports multiple contexts,
similar to kubectl's context management. Variables in ./.env are loaded
before any command runs (AWS credentials for S3 storage).

Examples:
  # Train 8 clusters from a corpus, showing the elbow curve first
  accent train data/samples --elbow

  # Classify a recording
  accent classify clip.mp3

  # Serve classification over HTTP
  accent serve --listen :8080
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.accent/accent/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Artifact location, shared by every model command.
	rootCmd.PersistentFlags().String("model", "", "model file inside the store (default "+artifact.DefaultModelPath+")")
	rootCmd.PersistentFlags().String("reference", "", "reference table inside the store (default "+artifact.DefaultReferencePath+")")
	rootCmd.PersistentFlags().String("store", "", "local artifact directory (overrides the context storage root)")
	rootCmd.PersistentFlags().String("ffmpeg", "", "enable the ffmpeg decode fallback with this binary")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(convertCmd)
}

func initConfig() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("load .env", "error", err)
	}

	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s config: %v\n", appName, err)
	}
}

func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// flagKeys maps command-line flags to context keys.
var flagKeys = map[string]string{
	"model":     "model",
	"reference": "reference",
	"store":     "storage.root",
	"ffmpeg":    "ffmpeg",
	"corpus":    "corpus",
	"clusters":  "clusters",
	"seed":      "seed",
	"limit":     "limit",
	"kv-dir":    "kv_dir",
	"listen":    "listen",
}

// getContext returns a copy of the selected context with explicitly set
// flags applied on top.
func getContext(cmd *cobra.Command) (*cli.Context, error) {
	ctx := &cli.Context{}
	if cfg, err := getConfig(); err == nil {
		resolved, err := cfg.ResolveContext(contextName)
		if err != nil {
			return nil, err
		}
		*ctx = *resolved
		if resolved.Storage != nil {
			st := *resolved.Storage
			ctx.Storage = &st
		}
	} else if contextName != "" {
		return nil, err
	}

	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if flag == "store" {
			// A local directory replaces any configured backend.
			ctx.Storage = nil
			if err := ctx.Set("storage.kind", "local"); err != nil {
				return nil, err
			}
		}
		if err := ctx.Set(key, f.Value.String()); err != nil {
			return nil, fmt.Errorf("--%s: %w", flag, err)
		}
	}
	return ctx, nil
}

func newDecoder(ctx *cli.Context) *decode.Decoder {
	opts := []decode.Option{decode.WithLogger(slog.Default())}
	if ctx.FFmpeg != "" {
		opts = append(opts, decode.WithFFmpeg(ctx.FFmpeg))
	}
	return decode.New(opts...)
}

// loadClassifier opens the context's store and loads the artifact pair.
func loadClassifier(cmd *cobra.Command, ctx *cli.Context, opts accent.Options) (*accent.Classifier, error) {
	store, err := ctx.OpenStore()
	if err != nil {
		return nil, err
	}
	if opts.Decoder == nil {
		opts.Decoder = newDecoder(ctx)
	}
	if opts.Limit == 0 {
		opts.Limit = ctx.Limit
	}
	c, err := accent.Load(cmd.Context(), store, ctx.ArtifactPaths(), opts)
	if err != nil {
		return nil, fmt.Errorf("load model (run 'accent train' first?): %w", err)
	}
	slog.Debug("model loaded", "run_id", c.Info().RunID, "k", c.K(), "samples", c.Index().Len())
	return c, nil
}

// openMirror opens the badger reference mirror, or returns nil when no
// directory is configured.
func openMirror(ctx *cli.Context) (kv.Store, error) {
	if ctx.KVDir == "" {
		return nil, nil
	}
	return kv.NewBadger(kv.BadgerOptions{Dir: ctx.KVDir, Logger: slog.Default()})
}

func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
	})
}

func printVerbose(format string, args ...any) {
	cli.PrintVerbose(verbose, format, args...)
}
