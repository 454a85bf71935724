package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/auth"
	"github.com/wolfeidau/pcfhub/internal/federation"
	httpmiddleware "github.com/wolfeidau/pcfhub/internal/http"
	"github.com/wolfeidau/pcfhub/internal/httpsig"
	"github.com/wolfeidau/pcfhub/internal/logger"
	"github.com/wolfeidau/pcfhub/internal/store"
	"github.com/wolfeidau/pcfhub/internal/tasks"
)

// Config holds the HTTP facing settings of a node.
type Config struct {
	BaseURL      string   // public URL of this node, also the token issuer
	CORSOrigins  []string // origins allowed to call the operator API
	MaxBodyBytes int64
	TokenTTL     time.Duration
}

// Server wires the protocol and operator endpoints of a node.
type Server struct {
	cfg        Config
	store      store.Store
	keys       *auth.KeyManager
	authorizer *auth.JWTAuthorizer
	verifier   *httpsig.Verifier
	dispatcher *federation.Dispatcher
	catalog    *federation.Catalog
	tasks      *tasks.Service
}

// New creates a server. Inbound event signatures are checked with verifier.
func New(cfg Config, s store.Store, keys *auth.KeyManager, verifier *httpsig.Verifier, dispatcher *federation.Dispatcher) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = httpmiddleware.DefaultMaxBodyBytes
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &Server{
		cfg:        cfg,
		store:      s,
		keys:       keys,
		authorizer: auth.NewJWTAuthorizer(keys, cfg.BaseURL),
		verifier:   verifier,
		dispatcher: dispatcher,
		catalog:    federation.NewCatalog(s),
		tasks:      tasks.NewService(s),
	}
}

// Authorizer returns the authorizer verifying tokens issued by this node.
func (s *Server) Authorizer() *auth.JWTAuthorizer {
	return s.authorizer
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.Requests(log))
	r.Use(httpmiddleware.ClientIPMiddleware)
	r.Use(middleware.Recoverer)

	// Health check endpoint for load balancer
	r.Get("/health", s.health)

	r.Group(func(r chi.Router) {
		r.Use(gzipped)
		r.Method(http.MethodPost, federation.PathToken, auth.NewTokenEndpoint(s.store, s.authorizer, s.cfg.TokenTTL))
		r.Method(http.MethodGet, auth.JWKSPath, s.keys.JWKSHandler())

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.authorizer, writeProtocolError))
			r.Get(federation.PathFootprints, s.listFootprints)
			r.Get(federation.PathFootprints+"/{id}", s.getFootprint)
			r.Post(federation.PathEvents, s.postEvent)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(withCORS(s.cfg.CORSOrigins))
		r.Use(auth.Middleware(s.authorizer, writeError))

		r.Get("/tasks", s.listTasks)
		r.Get("/tasks/{id}", s.getTask)
		r.Patch("/tasks/{id}", s.updateTask)
		r.Delete("/tasks/{id}", s.deleteTask)
		r.Post("/tasks/{id}/fulfil", s.fulfilTask)
		r.Post("/tasks/{id}/reject", s.rejectTask)
		r.Post("/tasks/{id}/accept", s.acceptContract)

		r.Post("/footprints", s.saveFootprint)
		r.Post("/notifications", s.notify)
		r.Post("/requests", s.requestFootprint)
		r.Post("/contracts", s.requestContract)
		r.Post("/datasources", s.registerDataSource)
		r.Post("/clients", s.issueClient)
	})

	return r
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	p, ok := s.store.(pinger)
	if !ok {
		httpmiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if err := p.Ping(r.Context()); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Health check failed")
		httpmiddleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func gzipped(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

func withCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Link"},
	})
	return c.Handler
}

// writeProtocolError renders err in the {code, message} shape partners expect.
func writeProtocolError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := apperr.ToProtocol(err)
	logFailure(r, status, err)
	httpmiddleware.WriteJSON(w, status, body)
}

// writeError renders err for operator clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	_, body := apperr.ToProtocol(err)
	logFailure(r, status, err)
	httpmiddleware.WriteJSON(w, status, body)
}

func logFailure(r *http.Request, status int, err error) {
	evt := log.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Ctx(r.Context()).Error()
	}
	evt.Err(err).Str("kind", apperr.KindOf(err).String()).Msg("Request failed")
}
