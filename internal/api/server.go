package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/relaxcloud/whisperd/internal/config"
	"github.com/relaxcloud/whisperd/internal/whisper"
)

// Both directions advertise a 50 MiB message limit.
const maxMessageBytes = 50 << 20

// Server is the HTTP front-end for the dissection engine.
type Server struct {
	router     chi.Router
	pool       *whisper.EnginePool
	batch      *whisper.BatchProcessor
	serializer *whisper.ReplySerializer
	workers    *semaphore.Weighted
	log        *slog.Logger
	cfg        config.Config
}

// NewServer wires the routes and the request-concurrency bound.
func NewServer(pool *whisper.EnginePool, batch *whisper.BatchProcessor, serializer *whisper.ReplySerializer, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		pool:       pool,
		batch:      batch,
		serializer: serializer,
		workers:    semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		log:        log,
		cfg:        cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Post("/v1/whisper", s.handleWhisper)

	s.router = r
}
