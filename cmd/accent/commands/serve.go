package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/haivivi/accent/pkg/accent"
	"github.com/haivivi/accent/pkg/cli"
	"github.com/haivivi/accent/pkg/metrics"
	"github.com/haivivi/accent/pkg/server"
)

const defaultListen = ":8080"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve classification over HTTP",
	Long: `Load the model once and serve it over HTTP.

Endpoints:
  POST /classify   multipart/form-data upload, field "file" (wav or mp3)
  GET  /model      model metadata and cluster sizes
  GET  /healthz    liveness
  GET  /metrics    Prometheus metrics

Examples:
  accent serve --listen :8080 --rps 5
  curl -F file=@clip.mp3 localhost:8080/classify`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := getContext(cmd)
		if err != nil {
			return err
		}
		rps, _ := cmd.Flags().GetFloat64("rps")
		burst, _ := cmd.Flags().GetInt("burst")

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(reg)

		c, err := loadClassifier(cmd, ctx, accent.Options{Metrics: m})
		if err != nil {
			return err
		}
		handler := server.New(c, server.Config{
			RequestsPerSec: rps,
			Burst:          burst,
			Logger:         slog.Default(),
			Metrics:        m,
			Gatherer:       reg,
		})

		addr := ctx.Listen
		if addr == "" {
			addr = defaultListen
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		slog.Info("serving",
			"addr", addr,
			"run_id", c.Info().RunID,
			"k", c.K(),
			"max_upload", cli.FormatBytes(server.MaxUploadSize))

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default "+defaultListen+")")
	serveCmd.Flags().Int("limit", 0, "number of similar samples per response (default 10)")
	serveCmd.Flags().Float64("rps", 0, "classification requests per second across all clients (0 = unlimited)")
	serveCmd.Flags().Int("burst", 1, "rate limiter burst")
}
