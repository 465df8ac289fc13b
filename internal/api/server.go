// Package api serves the prediction form, the history views and their JSON
// counterparts over HTTP.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/risk.report/internal/features"
	"github.com/banshee-data/risk.report/internal/history"
	"github.com/banshee-data/risk.report/internal/httputil"
	"github.com/banshee-data/risk.report/internal/model"
	"github.com/banshee-data/risk.report/internal/predlog"
	"github.com/banshee-data/risk.report/internal/timeutil"
	"github.com/banshee-data/risk.report/internal/version"
)

// ANSI escape codes used to colour request log lines.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// RequestIDHeader carries the per-request id set by LoggingMiddleware.
const RequestIDHeader = "X-Request-ID"

// Options tunes a Server. Zero values select the defaults.
type Options struct {
	Encoding     features.EncodingMode
	SinkName     string
	HistoryLimit int
	PreviewLimit int
	Clock        timeutil.Clock
}

type Server struct {
	arts  *model.Artifacts
	sink  predlog.Sink
	log   predlog.Reader
	opts  Options
	clock timeutil.Clock
}

// NewServer builds a server that scores with arts, appends through sink
// and reads the same log back through log. sink should serialise writes;
// see predlog.Serialized.
func NewServer(arts *model.Artifacts, sink predlog.Sink, log predlog.Reader, opts Options) *Server {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = history.DefaultLimit
	}
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = history.DefaultLimit
	}
	if opts.SinkName == "" {
		opts.SinkName = "csv"
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		arts:  arts,
		sink:  sink,
		log:   log,
		opts:  opts,
		clock: clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware tags each request with an id and logs method, path,
// query, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms id=%s",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6, id,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.showForm)
	mux.HandleFunc("/predict", s.predictForm)
	mux.HandleFunc("/api/predict", s.predictJSON)
	mux.HandleFunc("/download", s.downloadLog)
	mux.HandleFunc("/history", s.showHistory)
	mux.HandleFunc("/history.png", s.showHistoryPNG)
	mux.HandleFunc("/api/predictions", s.listPredictions)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/health", s.health)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type configResponse struct {
	Version      string  `json:"version"`
	GitSHA       string  `json:"git_sha"`
	BuildTime    string  `json:"build_time"`
	ModelVersion string  `json:"model_version"`
	SchemaWidth  int     `json:"schema_width"`
	Encoding     string  `json:"encoding"`
	Sink         string  `json:"sink"`
	Threshold    float64 `json:"threshold"`
	HistoryLimit int     `json:"history_limit"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, configResponse{
		Version:      version.Version,
		GitSHA:       version.GitSHA,
		BuildTime:    version.BuildTime,
		ModelVersion: s.arts.ModelVersion,
		SchemaWidth:  len(s.arts.Schema),
		Encoding:     s.opts.Encoding.String(),
		Sink:         s.opts.SinkName,
		Threshold:    s.arts.Classifier.EffectiveThreshold(),
		HistoryLimit: s.opts.HistoryLimit,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}
