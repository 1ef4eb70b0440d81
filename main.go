package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mpilhlt/dhamps-anonymizer/internal/models"
	"github.com/mpilhlt/dhamps-anonymizer/internal/ratelimit"
	"github.com/mpilhlt/dhamps-anonymizer/internal/scrubber"
	"github.com/mpilhlt/dhamps-anonymizer/internal/server"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// app carries what the root callback builds to the subcommands.
type app struct {
	logger zerolog.Logger
	engine *scrubber.Scrubber
	server *server.Server
}

func main() {
	// A missing .env file is fine; the environment and flags still apply.
	_ = godotenv.Load()

	a := &app{}

	// Create a CLI app
	cli := humacli.New(func(hooks humacli.Hooks, options *models.Options) {
		a.logger = newLogger(options, os.Stderr)

		engine, err := newEngine(options)
		if err != nil {
			a.logger.Fatal().Err(err).Msg("Unable to build scrubbing engine")
		}
		a.engine = engine

		serverOpts := []server.Option{server.WithLogger(a.logger)}
		var limiter ratelimit.Limiter
		if options.RateLimit > 0 {
			limiter, err = ratelimit.New(options.RateLimitBackend, options.RateLimit, options.RateBurst, options.RedisURL)
			if err != nil {
				a.logger.Fatal().Err(err).Msg("Unable to set up rate limiting")
			}
			serverOpts = append(serverOpts, server.WithLimiter(limiter))
		}

		a.server, err = server.New(engine, options, serverOpts...)
		if err != nil {
			a.logger.Fatal().Err(err).Msg("Unable to create server")
		}
		httpServer := a.server.HTTPServer()

		// Start server
		hooks.OnStart(func() {
			if p, ok := limiter.(interface{ Ping(context.Context) error }); ok {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := p.Ping(ctx); err != nil {
					a.logger.Warn().Err(err).Msg("Rate limiter backend unreachable, requests will not be limited until it is")
				}
				cancel()
			}

			a.logger.Info().
				Str("addr", httpServer.Addr).
				Strs("entities", engine.Entities()).
				Bool("auth", options.APIKey != "").
				Int("rate_limit", options.RateLimit).
				Msg("Starting anonymization service")
			err := httpServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error().Err(err).Msg("Listen error")
			} else {
				a.logger.Info().Msg("API server stopped")
			}
		})

		// Gracefully shutdown server
		hooks.OnStop(func() {
			a.logger.Info().Msg("Shutting down API server")

			// Create a context with a timeout for the shutdown process
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				a.logger.Error().Err(err).Msg("Shutdown error")
			}
			if c, ok := limiter.(io.Closer); ok {
				if err := c.Close(); err != nil {
					a.logger.Warn().Err(err).Msg("Closing rate limiter failed")
				}
			}
		})
	})

	cli.Root().Use = "anonymizer"
	cli.Root().Short = "Replace personally identifiable information in text"
	cli.Root().AddCommand(openAPICommand(a), scrubCommand(a), anonymizeCommand())

	// Run the CLI. When passed no commands, it starts the server.
	cli.Run()
}

// newLogger writes JSON lines, or human readable output for the console
// format.
func newLogger(options *models.Options, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if options.Debug {
		level = zerolog.DebugLevel
	}
	if options.LogFormat != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// newEngine builds the scrubber the options describe.
func newEngine(options *models.Options) (*scrubber.Scrubber, error) {
	opts := []scrubber.Option{
		scrubber.WithEnabledEntities(options.EnabledEntityList()),
		scrubber.WithDisabledEntities(options.DisabledEntityList()),
	}
	if options.PatternFile != "" {
		opts = append(opts, scrubber.WithPatternFile(options.PatternFile))
	}
	if options.MinScore > 0 {
		opts = append(opts, scrubber.WithMinScore(float64(options.MinScore)/100))
	}
	return scrubber.New(opts...)
}
