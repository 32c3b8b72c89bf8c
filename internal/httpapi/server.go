package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mnemo-dev/mnemo/internal/memstore"
	"github.com/mnemo-dev/mnemo/internal/registry"
	"github.com/mnemo-dev/mnemo/internal/telemetry"
)

// requestTimeout bounds how long a single HTTP request may run; the
// store engine's own retry profiles have tighter internal bounds, this
// is the outer backstop.
const requestTimeout = 90 * time.Second

// Server wires the store engine and the telemetry/registry singletons
// behind a chi router. It holds no state of its own beyond the router.
type Server struct {
	router   chi.Router
	engine   *memstore.Engine
	ledger   *telemetry.CostLedger
	activity *telemetry.ActivityLog
	names    *registry.Registry
	log      zerolog.Logger
}

// NewServer builds a Server over already-constructed dependencies and
// registers every route.
func NewServer(engine *memstore.Engine, ledger *telemetry.CostLedger, activity *telemetry.ActivityLog, names *registry.Registry, log zerolog.Logger) *Server {
	s := &Server{
		engine:   engine,
		ledger:   ledger,
		activity: activity,
		names:    names,
		log:      log.With().Str("component", "httpapi").Logger(),
	}
	s.router = s.newRouter()
	return s
}

// Handler returns the server's http.Handler, suitable for
// http.ListenAndServe.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) newRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(maxBodySize(maxRequestBodyBytes))
	r.Use(requireJSONContentType)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Post("/search", s.handleSearch)
		r.Get("/list", s.handleList)
		r.Delete("/memories/{id}", s.handleDeleteMemory)
		r.Get("/profile/{user_id}", s.handleProfile)

		r.Get("/costs", s.handleCostSnapshot)
		r.Get("/activity", s.handleActivityRecent)
		r.Get("/names", s.handleNamesSnapshot)
	})

	return r
}
