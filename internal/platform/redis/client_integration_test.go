//go:build integration

package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"passage/internal/platform/config"
	"passage/pkg/testutil/containers"
)

func TestNew_Ping(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	c, err := New(context.Background(), config.RedisConfig{URL: rc.Addr})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Health(context.Background()))
}
