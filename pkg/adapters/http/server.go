// Package http exposes the cart service over a JSON HTTP API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/cartkeeper/internal/logging"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// Error kinds produced by the transport itself.
const (
	kindValidation  domain.ErrorKind = "validation"
	kindRateLimited domain.ErrorKind = "rate_limited"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind"`
}

// InfoResponse describes the running service.
type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Debug   bool   `json:"debug"`
}

type quantityUpdate struct {
	Quantity int `json:"quantity"`
}

// Server serves the cart API.
type Server struct {
	service   ports.CartService
	validator *validator
	limiter   *clientLimiter
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	version   string
	debug     bool
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRateLimit limits each client address to rps requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limiter = newClientLimiter(rps, burst)
	}
}

// WithMetrics serves the gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithDebug enables POST /carts/{cartId}/expire when the service supports it.
func WithDebug(enabled bool) Option {
	return func(s *Server) {
		s.debug = enabled
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler creates the HTTP handler for service.
func NewHandler(ctx context.Context, service ports.CartService, opts ...Option) (http.Handler, error) {
	v, err := newValidator(ctx)
	if err != nil {
		return nil, err
	}
	s := &Server{
		service:   service,
		validator: v,
		logger:    logging.NewNop(),
		version:   "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s.routes(), nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/carts", func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Post("/", s.createCart)
		r.Route("/{cartId}", func(r chi.Router) {
			r.Get("/", s.getCart)
			r.Post("/items", s.addItem)
			r.Patch("/items/{itemId}", s.updateItem)
			r.Delete("/items/{itemId}", s.removeItem)
			if trigger, ok := s.service.(ports.ExpiryTrigger); ok && s.debug {
				r.Post("/expire", s.expireCart(trigger))
			}
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{Name: "cartkeeper", Version: s.version, Debug: s.debug})
}

func (s *Server) createCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.CreateCart(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	cartID, ok := s.pathParam(w, r, "cartId")
	if !ok {
		return
	}
	c, err := s.service.GetCart(r.Context(), cartID)
	s.respond(w, r, c, err)
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := s.pathParam(w, r, "cartId")
	if !ok {
		return
	}
	var input domain.ItemInput
	if !s.decodeBody(w, r, schemaItemInput, &input) {
		return
	}
	input, err := input.Sanitize()
	if err == nil && input.ProductID == "" {
		err = errors.New("productId must not be blank")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err.Error())
		return
	}
	c, err := s.service.AddItem(r.Context(), cartID, input)
	s.respond(w, r, c, err)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := s.pathParam(w, r, "cartId")
	if !ok {
		return
	}
	itemID, ok := s.pathParam(w, r, "itemId")
	if !ok {
		return
	}
	var body quantityUpdate
	if !s.decodeBody(w, r, schemaQuantityUpdate, &body) {
		return
	}
	c, err := s.service.UpdateItem(r.Context(), cartID, itemID, body.Quantity)
	s.respond(w, r, c, err)
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := s.pathParam(w, r, "cartId")
	if !ok {
		return
	}
	itemID, ok := s.pathParam(w, r, "itemId")
	if !ok {
		return
	}
	c, err := s.service.RemoveItem(r.Context(), cartID, itemID)
	s.respond(w, r, c, err)
}

func (s *Server) expireCart(trigger ports.ExpiryTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, ok := s.pathParam(w, r, "cartId")
		if !ok {
			return
		}
		if err := trigger.ForceExpiry(r.Context(), cartID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// pathParam binds a simple-style path parameter.
func (s *Server) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err == nil && value == "" {
		err = errors.New("must not be empty")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid parameter "+name+": "+err.Error())
		return "", false
	}
	return value, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "failed to read body: "+err.Error())
		return false
	}
	if err := s.validator.decode(schema, body, dst); err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadRequest, kindValidation, err.Error())
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, c *domain.Cart, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "err", err)
	}
	writeError(w, status, kind, err.Error())
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindSessionNotFound, domain.KindItemNotFound:
		return http.StatusNotFound
	case kindValidation:
		return http.StatusBadRequest
	case domain.KindRecoveryFailed:
		return http.StatusServiceUnavailable
	case kindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, kind domain.ErrorKind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}
