// Package server wires the scrubbing engine, the huma API and the HTTP
// middlewares into one handler.
package server

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/mpilhlt/dhamps-anonymizer/internal/auth"
	"github.com/mpilhlt/dhamps-anonymizer/internal/handlers"
	"github.com/mpilhlt/dhamps-anonymizer/internal/models"
	"github.com/mpilhlt/dhamps-anonymizer/internal/ratelimit"
	"github.com/mpilhlt/dhamps-anonymizer/internal/scrubber"

	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	huma "github.com/danielgtaylor/huma/v2"
)

const (
	Title   = "Anonymization Service API"
	Version = "0.1.0"

	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// Server holds the router and API of one service instance.
type Server struct {
	options *models.Options
	logger  zerolog.Logger
	limiter ratelimit.Limiter
	router  *http.ServeMux
	api     huma.API
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the base logger. Every request gets a child logger carrying
// its request id.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLimiter enables rate limiting of the anonymize operation.
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// New builds a server around engine.
func New(engine scrubber.Engine, options *models.Options, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("provided engine is nil")
	}
	if options == nil {
		options = &models.Options{}
	}
	s := &Server{
		options: options,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Create a new router & API
	config := huma.DefaultConfig(Title, Version)
	config.Info.Description = "Replaces personally identifiable information in free text with entity placeholders."
	config.Components.SecuritySchemes = auth.Config
	s.router = http.NewServeMux()
	s.api = humago.New(s.router, config)
	s.api.UseMiddleware(requestLogger(s.logger))
	s.api.UseMiddleware(auth.APIKeyAuth(s.api, options.APIKey))
	s.api.UseMiddleware(auth.AuthTermination(s.api))
	if s.limiter != nil {
		s.api.UseMiddleware(ratelimit.Middleware(s.api, s.limiter, "anonymize"))
	}

	// Add routes to the API
	err := handlers.AddRoutes(engine, handlers.Settings{
		Timeout:      options.EngineTimeout(),
		MaxBodyBytes: int64(options.MaxBodyBytes),
		Security:     auth.Security(options.APIKey),
	}, s.api)
	if err != nil {
		return nil, fmt.Errorf("unable to add routes: %w", err)
	}

	s.handler = corsHandler(options.CORSOriginList()).Handler(s.router)
	return s, nil
}

// Handler returns the router wrapped in the CORS handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// API returns the huma API, e.g. to print the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// HTTPServer returns an http.Server listening on the configured host and port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// corsHandler allows any method and header. Credentials are allowed, so the
// request origin is echoed instead of "*".
func corsHandler(origins []string) *cors.Cors {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	}
	if slices.Contains(origins, "*") {
		opts.AllowOriginFunc = func(origin string) bool { return true }
	} else {
		opts.AllowedOrigins = origins
	}
	return cors.New(opts)
}

// requestLogger tags each request with an id and puts a logger carrying it
// into the request context.
func requestLogger(base zerolog.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		requestID := ctx.Header(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}
		ctx.SetHeader(RequestIDHeader, requestID)

		logger := base.With().Str("request_id", requestID).Logger()
		ctx = huma.WithContext(ctx, logger.WithContext(ctx.Context()))

		start := time.Now()
		next(ctx)
		logger.Info().
			Str("method", ctx.Method()).
			Str("path", ctx.URL().Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
