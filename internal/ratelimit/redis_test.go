package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// getTestRedis spins up a Redis container and returns its URL together with
// the teardown function terminating the container.
func getTestRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("unable to start redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s/0", endpoint), func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Error terminating container: %v", err)
		}
	}
}

func TestRedisLimiter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	url, teardown := getTestRedis(t)
	defer teardown()

	ctx := context.Background()
	limiter, err := NewRedisLimiter(url, 1, 2)
	require.NoError(t, err)
	defer limiter.Close()
	require.NoError(t, limiter.Ping(ctx))

	// Freeze the clock so no tokens are refilled between calls.
	frozen := time.Now()
	limiter.now = func() time.Time { return frozen }

	for i, want := range []bool{true, true, false} {
		got, err := limiter.Allow(ctx, "198.51.100.7")
		require.NoError(t, err)
		assert.Equal(t, want, got, "request %d", i)
	}

	got, err := limiter.Allow(ctx, "198.51.100.8")
	require.NoError(t, err)
	assert.True(t, got)

	// One second later one token is back.
	frozen = frozen.Add(time.Second)
	got, err = limiter.Allow(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestNewRedisLimiterRejectsBadInput(t *testing.T) {
	_, err := NewRedisLimiter("redis://localhost:6379/0", 0, 1)
	assert.Error(t, err)

	_, err = NewRedisLimiter("not a url", 1, 1)
	assert.Error(t, err)
}
