package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mpilhlt/dhamps-anonymizer/internal/scrubber"

	huma "github.com/danielgtaylor/huma/v2"
)

type contextKey string

// Context keys
const (
	EngineKey = contextKey("engine")
)

// Error responses
var (
	ErrEngineNotFound = errors.New("scrubbing engine not found in context")
)

// ProcessingErrorMessage is the only detail a client receives when the
// scrubbing engine fails, whatever the cause.
const ProcessingErrorMessage = "Error scrubbing text"

// Settings tune how the routes are registered.
type Settings struct {
	// Timeout bounds a single engine call. Zero means no timeout.
	Timeout time.Duration
	// MaxBodyBytes limits the request body (0 keeps huma's default).
	MaxBodyBytes int64
	// Security is attached to the anonymize operation (e.g. when an API key
	// is configured).
	Security []map[string][]string
}

// AddRoutes adds all the routes to the API
func AddRoutes(engine scrubber.Engine, settings Settings, api huma.API) error {
	if engine == nil {
		return fmt.Errorf("provided engine is nil")
	}
	err := RegisterAnonymizeRoutes(engine, settings, api)
	if err != nil {
		return fmt.Errorf("unable to register anonymize routes: %w", err)
	}
	return nil
}

// Middleware to add the scrubbing engine to the context
func addEngineToContext[I any, O any](engine scrubber.Engine, next func(context.Context, *I) (*O, error)) func(context.Context, *I) (*O, error) {
	return func(ctx context.Context, input *I) (*O, error) {
		if engine == nil {
			return nil, fmt.Errorf("provided engine is nil")
		}
		ctx = context.WithValue(ctx, EngineKey, engine)
		return next(ctx, input)
	}
}

// Get the scrubbing engine from the context
// (exported helper function so that blackbox testing can access it)
func GetEngine(ctx context.Context) (scrubber.Engine, error) {
	engine, ok := ctx.Value(EngineKey).(scrubber.Engine)
	if !ok {
		return nil, huma.NewError(http.StatusInternalServerError, ErrEngineNotFound.Error())
	}
	return engine, nil
}

// exactPath rejects requests whose path is not exactly path. The root
// operation needs it because a "GET /" ServeMux pattern matches every path.
func exactPath(api huma.API, path string) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if ctx.URL().Path != path {
			_ = huma.WriteErr(api, ctx, http.StatusNotFound, http.StatusText(http.StatusNotFound))
			return
		}
		next(ctx)
	}
}
