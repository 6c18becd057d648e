package web

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"dwg-boq-service/internal/domain/model"
	"dwg-boq-service/internal/infra/logging"
)

// JobService is the slice of the job use case the HTTP layer needs.
type JobService interface {
	Submit(ctx context.Context, filename string, file io.Reader) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	Result(ctx context.Context, id string) (path string, downloadName string, err error)
	List(ctx context.Context, offset, limit int) ([]*model.Job, error)
}

// StatsService reports job totals for the admin API.
type StatsService interface {
	Totals(ctx context.Context) (byStatus map[string]int, queueDepth int64, err error)
}

type Server struct {
	jobs           JobService
	stats          StatsService
	auth           *AuthManager
	apiKey         string
	maxUploadBytes int64
	log            *zerolog.Logger
}

func NewServer(
	jobs JobService,
	stats StatsService,
	auth *AuthManager,
	apiKey string,
	maxUploadBytes int64,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		jobs:           jobs,
		stats:          stats,
		auth:           auth,
		apiKey:         apiKey,
		maxUploadBytes: maxUploadBytes,
		log:            &l,
	}
}

// Router builds the full route tree. Callers may mount extra handlers
// (e.g. /metrics) on the returned router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", uploadHandler(s.jobs, s.maxUploadBytes))
		r.Get("/jobs/{id}", statusHandler(s.jobs))
		r.Get("/jobs/{id}/result", resultHandler(s.jobs))

		r.Post("/admin/login", s.loginHandler())
		r.Post("/admin/logout", s.logoutHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Get("/jobs", listHandler(s.jobs))
			r.Get("/stats", statsHandler(s.stats))
		})
	})

	return r
}

// adminOnly admits a valid admin session token or the raw API key as a
// Bearer token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		hdr := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(hdr), []byte("Bearer "+s.apiKey)) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		// carry the id down so use case logs correlate with the access log
		ctx := logging.WithRequestID(r.Context(), reqID)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.log.Info().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
