package management

import (
	"context"
	"log/slog"
	"net"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/hioload-sfu/api"
	"github.com/momentics/hioload-sfu/control"
	"github.com/momentics/hioload-sfu/overload"
	"github.com/momentics/hioload-sfu/relay"
)

// LoadView is the read side of the load-shedding controller.
type LoadView interface {
	CurrentStressLevel() float64
	State() overload.State
}

// Conferences manages relay membership.
type Conferences interface {
	Conferences() []relay.ConferenceInfo
	Join(conferenceID, endpointID string, addr net.Addr) error
	Leave(conferenceID, endpointID string) error
}

// Deps are the components the API exposes. Pool and Control are required;
// routes for nil optional members answer 404.
type Deps struct {
	Pool     api.StatsProvider
	Control  api.Control
	Load     LoadView
	Relay    Conferences
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server represents the management HTTP server.
type Server struct {
	app    *fiber.App
	deps   Deps
	logger *slog.Logger
}

// NewServer creates the server and its routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "management"))

	s := &Server{deps: deps, logger: logger}
	s.app = fiber.New(fiber.Config{
		AppName:               "hioload-sfu management",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.errorHandler,
	})

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// App returns the underlying Fiber app for testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("management api listening", slog.String("address", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) setupMiddleware() {
	s.app.Use(requestid.New())
	s.app.Use(recover.New())
	s.app.Use(requestLogger(s.logger))
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", healthCheck)

	debug := s.app.Group("/debug")
	debug.Get("/pool", s.getPoolStats)
	debug.Put("/pool/statistics", s.setPoolFlag(control.KeyPoolStatistics))
	debug.Put("/pool/bookkeeping", s.setPoolFlag(control.KeyPoolBookkeeping))
	debug.Get("/load", s.getLoad)
	debug.Get("/state", s.getState)
	debug.Get("/config", s.getConfig)
	debug.Patch("/config", s.patchConfig)

	s.app.Get("/conferences", s.listConferences)
	s.app.Post("/conferences/:conference/endpoints", s.joinEndpoint)
	s.app.Delete("/conferences/:conference/endpoints/:endpoint", s.leaveEndpoint)

	if s.deps.Gatherer != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}
}
