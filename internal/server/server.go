package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/verdant/internal/config"
	"github.com/copyleftdev/verdant/internal/engine"
	"github.com/copyleftdev/verdant/internal/errors"
	"github.com/copyleftdev/verdant/internal/logging"
	"github.com/copyleftdev/verdant/internal/payload"
)

// TenantHeader selects the centroid state a segmentation request runs against.
const TenantHeader = "X-Tenant-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Customer is one segmentation input.
type Customer struct {
	EcoScore      int `json:"eco_score"`
	WalletBalance int `json:"wallet_balance"`
}

// CentroidView is the JSON form of a tier centroid.
type CentroidView struct {
	Tier string  `json:"tier"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Server implements the HTTP and JSON-RPC surface over the engine.
// Every engine result is produced through an output buffer sized from the
// config, so responses carry exactly what a buffer-oriented host would see.
type Server struct {
	cfg    *config.Config
	logger Logger
	engine *engine.Engine
}

// NewServer creates a new server instance with the given config, logger and
// engine. A nil engine gets a default one.
// The logger parameter accepts any type that implements the Logger interface
func NewServer(cfg *config.Config, logger Logger, eng *engine.Engine) *Server {
	if eng == nil {
		eng = engine.New()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		engine: eng,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/route", s.handleRoute)
		r.Route("/segments", func(r chi.Router) {
			r.Post("/", s.handleSegments)
			r.Get("/centroids", s.handleCentroids)
			r.Post("/reset", s.handleReset)
		})
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// route runs one route optimization through a route sized buffer.
func (s *Server) route(stops int) (json.RawMessage, error) {
	buf := make([]byte, s.cfg.Routing.BufferSize)
	n, err := s.engine.WriteRoute(stops, buf)
	if err != nil {
		return nil, errors.Wrap(err, "route optimization failed").
			WithOperation("route.optimize").
			WithStatus(http.StatusServiceUnavailable)
	}
	return json.RawMessage(buf[:n]), nil
}

// segment runs one segmentation call through a segmentation sized buffer.
func (s *Server) segment(tenant string, customers []Customer) json.RawMessage {
	ecoScores := make([]int, len(customers))
	wallets := make([]int, len(customers))
	for i, c := range customers {
		ecoScores[i] = c.EcoScore
		wallets[i] = c.WalletBalance
	}

	buf := make([]byte, s.cfg.Segmentation.BufferSize)
	n := s.engine.PerformClustering(tenant, ecoScores, wallets, buf)
	return json.RawMessage(buf[:n])
}

func (s *Server) centroids(tenant string) []CentroidView {
	centroids := s.engine.Centroids(tenant)
	views := make([]CentroidView, len(centroids))
	for i, c := range centroids {
		views[i] = CentroidView{Tier: c.Tier.String(), X: c.Position.X, Y: c.Position.Y}
	}
	return views
}

// handleRoute handles GET /api/v1/route?stops=N.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	stops := s.cfg.Routing.DefaultStops
	if raw := r.URL.Query().Get("stops"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, errors.Errorf("stops must be an integer, got %q", raw).
				WithOperation("route.optimize").WithStatus(http.StatusBadRequest))
			return
		}
		stops = n
	}

	out, err := s.route(stops)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, http.StatusOK, out)
}

// handleSegments handles POST /api/v1/segments.
func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		Customers []Customer `json:"customers"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		s.writeError(w, errors.Wrap(err, "invalid request body").
			WithOperation("segmentation.cluster").WithStatus(http.StatusBadRequest))
		return
	}

	tenant := tenantOf(r)
	s.logger.Debug("Segmenting customers", map[string]interface{}{
		"tenant":    tenant,
		"customers": len(reqBody.Customers),
	})
	s.writeRaw(w, http.StatusOK, s.segment(tenant, reqBody.Customers))
}

// handleCentroids handles GET /api/v1/segments/centroids.
func (s *Server) handleCentroids(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(r)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant":    tenant,
		"centroids": s.centroids(tenant),
	})
}

// handleReset handles POST /api/v1/segments/reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(r)
	s.engine.ResetTenant(tenant)

	s.logger.Info("Centroids reset", map[string]interface{}{
		"tenant": tenant,
	})
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant": tenant,
		"status": "reset",
	})
}

func tenantOf(r *http.Request) string {
	return tenantName(r.Header.Get(TenantHeader))
}

func tenantName(tenant string) string {
	if tenant == "" {
		return engine.DefaultTenant
	}
	return tenant
}

// writeError writes err as {"error":"..."} with the status it maps to.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.StatusCode(err)
	s.logger.Warn("Request failed", map[string]interface{}{
		"status": status,
		"error":  err,
	})
	s.writeRaw(w, status, []byte(payload.Error(err).String()))
}

func (s *Server) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("Response write failed", map[string]interface{}{"error": err})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Response write failed", map[string]interface{}{"error": err})
	}
}
