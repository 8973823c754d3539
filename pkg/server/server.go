// Package server exposes a Classifier over HTTP.
//
//	POST /classify   multipart upload, field "file"; returns {cluster, similar, distance}
//	GET  /model      loaded model metadata
//	GET  /healthz
//	GET  /metrics    Prometheus exposition
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/haivivi/accent/pkg/accent"
	"github.com/haivivi/accent/pkg/audio/decode"
	"github.com/haivivi/accent/pkg/metrics"
)

// MaxUploadSize caps the request body of POST /classify.
const MaxUploadSize = 32 << 20

// Config configures a Server.
type Config struct {
	// RequestsPerSec limits POST /classify across all clients. Zero
	// disables the limit.
	RequestsPerSec float64
	Burst          int
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	// Gatherer serves /metrics. Nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front end of a Classifier.
type Server struct {
	classifier *accent.Classifier
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.Metrics
	mux        *http.ServeMux
}

// New returns a Server for c.
func New(c *accent.Classifier, cfg Config) *Server {
	s := &Server{
		classifier: c,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		mux:        http.NewServeMux(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if cfg.RequestsPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), max(cfg.Burst, 1))
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s.mux.HandleFunc("POST /classify", s.handleClassify)
	s.mux.HandleFunc("GET /model", s.handleModel)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
	start := time.Now()
	s.mux.ServeHTTP(rec, r)
	if r.URL.Path != "/metrics" {
		s.metrics.ObserveRequest(r.URL.Path, rec.code)
	}
	s.logger.Debug("http", "method", r.Method, "path", r.URL.Path, "code", rec.code, "duration", time.Since(start))
}

type errorBody struct {
	Error    string   `json:"error"`
	Failures []string `json:"failures,omitempty"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.Throttled()
		w.Header().Set("Retry-After", "1")
		s.writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		return
	}

	tooLarge := errorBody{Error: "upload exceeds " + strconv.Itoa(MaxUploadSize) + " bytes"}
	if r.ContentLength > MaxUploadSize {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing multipart field \"file\""})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	res, err := s.classifier.ClassifyBytes(r.Context(), data)
	if err != nil {
		s.logger.Warn("classify failed", "file", hdr.Filename, "error", err)
		var de *decode.Error
		switch {
		case errors.As(err, &de):
			body := errorBody{Error: "could not decode audio"}
			for _, f := range de.Failures {
				body.Failures = append(body.Failures, f.String())
			}
			s.writeJSON(w, http.StatusUnprocessableEntity, body)
		default:
			s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		}
		return
	}
	s.logger.Info("classified", "file", hdr.Filename, "cluster", res.Cluster)
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		Model    any   `json:"model"`
		Clusters []int `json:"cluster_sizes"`
	}{
		Model:    s.classifier.Info(),
		Clusters: s.classifier.Index().Counts(s.classifier.K()),
	})
}

// writeJSON sends v with status code. The header is already out when
// encoding fails, so the error is only logged.
func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "code", code, "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}
