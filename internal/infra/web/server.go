package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"crew-orchestrator/internal/config"
	"crew-orchestrator/internal/infra/logging"
	"crew-orchestrator/internal/usecase"
)

// Server is the HTTP surface of the orchestrator.
type Server struct {
	http *http.Server
	log  *zerolog.Logger
}

func NewServer(cfg config.ServerConfig, jobs usecase.JobUseCase, log *zerolog.Logger) *Server {
	h := &handlers{jobs: jobs, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/", h.root())
	r.Get("/health", h.health())
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/kickoff", h.kickoff())
	r.Get("/jobs", h.listJobs())
	r.Get("/list-crews", h.listCrews())
	r.Get("/models", h.listModels())
	r.Route("/job/{jobID}", func(r chi.Router) {
		r.Get("/", h.getJob())
		r.Delete("/", h.deleteJob())
		r.Post("/feedback", h.feedback())
	})

	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestLogger puts the chi request id into the logging context and emits
// one line per request.
func requestLogger(log *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			ctx := logging.WithRequestID(r.Context(), reqID)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(ctx))

			logging.With(ctx, log).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
