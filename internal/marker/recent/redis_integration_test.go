//go:build integration

package recent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"passage/internal/marker/recent"
	"passage/pkg/testutil/containers"
)

type entry struct {
	ID string `json:"id"`
	N  int    `json:"n"`
}

type RedisSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisSuite(t *testing.T) {
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSuite) TestTrimsToCapacity() {
	ctx := context.Background()
	log := recent.NewRedis[entry](s.redis.Client, "markers:recent", recent.WithCapacity(3))
	for i := 1; i <= 5; i++ {
		s.Require().NoError(log.Append(ctx, entry{ID: "m", N: i}))
	}

	got, err := log.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Equal(3, got[0].N)
	s.Equal(5, got[2].N)

	n, err := log.Len(ctx)
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *RedisSuite) TestClear() {
	ctx := context.Background()
	log := recent.NewRedis[entry](s.redis.Client, "markers:recent")
	s.Require().NoError(log.Append(ctx, entry{ID: "a"}))
	s.Require().NoError(log.Clear(ctx))

	got, err := log.List(ctx)
	s.Require().NoError(err)
	s.Empty(got)
}
