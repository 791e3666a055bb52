// Package web serves the summarization form, its JSON counterpart and the
// operational endpoints.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"textsum/internal/domain"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
	// writeTimeoutSlack is added on top of the tool timeout so slow
	// invocations still get their response written.
	writeTimeoutSlack = 30 * time.Second
	// formOverheadBytes covers field names and encoding on top of the text.
	formOverheadBytes = 64 << 10
	// maxBytesPerRune bounds the encoded size of one character.
	maxBytesPerRune = 12
)

//go:embed templates/*.html
var templatesFS embed.FS

// Summarizer is the part of the summarization adapter the web layer uses.
type Summarizer interface {
	SummarizeResult(ctx context.Context, text string, targetWords int) domain.SummaryResult
	Available() bool
	ToolName() string
}

type Config struct {
	Addr               string
	Title              string
	InstallHint        string
	MaxInputLength     int
	MinTargetWords     int
	MaxTargetWords     int
	DefaultTargetWords int
	TargetWordsStep    int
	InvocationTimeout  time.Duration
}

type Server struct {
	cfg        Config
	summarizer Summarizer
	tmpl       *template.Template
	mux        *http.ServeMux
	srv        *http.Server
	log        *slog.Logger
}

func New(
	cfg Config,
	summarizer Summarizer,
	gatherer prometheus.Gatherer,
	log *slog.Logger,
) (*Server, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		cfg:        cfg,
		summarizer: summarizer,
		tmpl:       tmpl,
		mux:        http.NewServeMux(),
		log:        log.With("component", "web"),
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /{$}", s.handleSubmit)
	s.mux.HandleFunc("POST /api/summaries", s.handleAPISummaries)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.InvocationTimeout + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
	}

	return s, nil
}

// Handler returns the routes wrapped with request ID and access log
// middleware.
func (s *Server) Handler() http.Handler {
	return requestIDMiddleware(s.accessLogMiddleware(s.mux))
}

// Start blocks until the server stops. A graceful Stop is not an error.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func (s *Server) maxRequestBytes() int64 {
	return int64(s.cfg.MaxInputLength)*maxBytesPerRune + formOverheadBytes
}
