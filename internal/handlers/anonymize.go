package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mpilhlt/dhamps-anonymizer/internal/models"
	"github.com/mpilhlt/dhamps-anonymizer/internal/scrubber"

	huma "github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// HelloMessage is returned by the liveness route.
const HelloMessage = "Hello from the Anonymization Service!"

// Define handler functions for each route
func postAnonymizeFunc(timeout time.Duration) func(context.Context, *models.AnonymizeRequest) (*models.AnonymizeResponse, error) {
	return func(ctx context.Context, input *models.AnonymizeRequest) (*models.AnonymizeResponse, error) {
		logger := zerolog.Ctx(ctx)
		// Never log the text itself
		logger.Info().Int("text_length", len(input.Body.Text)).Msg("Processing new request")

		engine, err := GetEngine(ctx)
		if err != nil {
			return nil, err
		}

		scrubbed, err := cleanWithTimeout(ctx, engine, input.Body.Text, timeout)
		if err != nil {
			// The engine error may quote the input, so only its kind is logged.
			logger.Warn().
				Bool("timeout", errors.Is(err, context.DeadlineExceeded)).
				Bool("cancelled", errors.Is(err, context.Canceled)).
				Msg("Scrubbing failed")
			return nil, huma.Error400BadRequest(ProcessingErrorMessage)
		}

		// Build response
		response := &models.AnonymizeResponse{}
		response.Body.AnonymizedText = scrubbed
		return response, nil
	}
}

func getHelloFunc(ctx context.Context, input *models.HelloRequest) (*models.HelloResponse, error) {
	response := &models.HelloResponse{}
	response.Body.AnonymizedText = HelloMessage
	return response, nil
}

type cleanResult struct {
	text string
	err  error
}

// cleanWithTimeout runs one engine call. It returns when the engine returns,
// panics, or ctx is done; an engine that ignores ctx keeps running in the
// background and its result is dropped.
func cleanWithTimeout(ctx context.Context, engine scrubber.Engine, text string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan cleanResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- cleanResult{err: fmt.Errorf("scrubbing engine panicked: %v", r)}
			}
		}()
		out, err := engine.Clean(ctx, text)
		done <- cleanResult{text: out, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RegisterAnonymizeRoutes registers the anonymization and liveness routes
func RegisterAnonymizeRoutes(engine scrubber.Engine, settings Settings, api huma.API) error {
	// Define huma.Operations for each route
	anonymizeOp := huma.Operation{
		OperationID:  "anonymize",
		Method:       http.MethodPost,
		Path:         "/anonymize",
		Summary:      "Replace personally identifiable information in text",
		Description:  "Detected entities are replaced by placeholders such as {{NAME}} or {{EMAIL}}. Engine failures are reported with a generic message.",
		MaxBodyBytes: settings.MaxBodyBytes,
		Security:     settings.Security,
		Errors:       []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
		Tags:         []string{"anonymize"},
	}
	if len(settings.Security) > 0 {
		anonymizeOp.Errors = append(anonymizeOp.Errors, http.StatusUnauthorized)
	}
	helloOp := huma.Operation{
		OperationID: "hello",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Liveness check",
		Middlewares: huma.Middlewares{exactPath(api, "/")},
		Tags:        []string{"info"},
	}

	// Register the routes with middleware
	huma.Register(api, anonymizeOp, addEngineToContext(engine, postAnonymizeFunc(settings.Timeout)))
	huma.Register(api, helloOp, getHelloFunc)
	return nil
}
