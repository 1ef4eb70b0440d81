package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mpilhlt/dhamps-anonymizer/internal/client"
	"github.com/mpilhlt/dhamps-anonymizer/internal/models"
	"github.com/mpilhlt/dhamps-anonymizer/internal/scrubber"
	"github.com/mpilhlt/dhamps-anonymizer/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		engine, err := newEngine(&models.Options{})
		require.NoError(t, err)
		assert.Contains(t, engine.Entities(), "EMAIL")
		assert.Contains(t, engine.Entities(), "PHONE")
	})

	t.Run("Entity filters", func(t *testing.T) {
		engine, err := newEngine(&models.Options{EnabledEntities: "email, phone", DisabledEntities: "phone"})
		require.NoError(t, err)
		assert.Equal(t, []string{"EMAIL"}, engine.Entities())
	})

	t.Run("Pattern file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "patterns.yaml")
		data := `recognizers:
  - name: ticket_recognizer
    supported_entity: TICKET
    patterns:
      - name: ticket
        regex: '\bTCK-\d{6}\b'
        score: 0.9
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		engine, err := newEngine(&models.Options{PatternFile: path})
		require.NoError(t, err)
		out, err := engine.Clean(context.Background(), "see TCK-123456")
		require.NoError(t, err)
		assert.Equal(t, "see {{TICKET}}", out)
	})

	t.Run("Missing pattern file", func(t *testing.T) {
		_, err := newEngine(&models.Options{PatternFile: filepath.Join(t.TempDir(), "nope.yaml")})
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&models.Options{LogFormat: "json"}, &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	buf.Reset()
	logger = newLogger(&models.Options{LogFormat: "json", Debug: true}, &buf)
	logger.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestScrub(t *testing.T) {
	var out bytes.Buffer
	err := scrub(context.Background(), scrubber.MustNew(), strings.NewReader("mail me: jane@example.org"), &out)
	require.NoError(t, err)
	assert.Equal(t, "mail me: {{EMAIL}}", out.String())

	failing := scrubber.EngineFunc(func(ctx context.Context, text string) (string, error) {
		return "", errors.New("boom")
	})
	assert.Error(t, scrub(context.Background(), failing, strings.NewReader("x"), &out))
}

func TestRemoteAnonymize(t *testing.T) {
	s, err := server.New(scrubber.MustNew(), &models.Options{Timeout: 10000, CORSOrigins: "*"})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	c, err := client.New(ts.URL)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, remoteAnonymize(context.Background(), c, "mail me: jane@example.org", &out))
	assert.Equal(t, "mail me: {{EMAIL}}\n", out.String())
}

func TestOpenAPICommand(t *testing.T) {
	s, err := server.New(scrubber.MustNew(), &models.Options{})
	require.NoError(t, err)

	cmd := openAPICommand(&app{server: s})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "/anonymize")
	assert.Contains(t, out.String(), server.Title)
}
