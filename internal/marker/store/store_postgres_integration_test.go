//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"passage/internal/marker/store"
	"passage/pkg/entry"
	"passage/pkg/exit"
	"passage/pkg/identity"
	"passage/pkg/marker"
	"passage/pkg/platform/sentinel"
	"passage/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgresStore(s.pg.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "markers"))
}

func (s *PostgresStoreSuite) TestDocumentIsKeptVerbatim() {
	ctx := context.Background()
	agent := identity.MustGenerate()
	m, err := exit.Create(agent, "platform-a", marker.ExitEmergency, exit.Metadata("outage", "region down"))
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveExit(ctx, m))

	rec, err := s.store.FindByID(ctx, m.ID)
	s.Require().NoError(err)
	s.True(exit.VerifyJSON(rec.Document).Valid)
	s.True(rec.Timestamp.Equal(m.Timestamp))
}

func (s *PostgresStoreSuite) TestConflictAndNotFound() {
	ctx := context.Background()
	m, err := exit.Create(identity.MustGenerate(), "platform-a", marker.ExitVoluntary, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveExit(ctx, m))

	s.True(errors.Is(s.store.SaveExit(ctx, m), sentinel.ErrConflict))

	_, err = s.store.FindByID(ctx, "urn:exit:00000000-0000-4000-8000-000000000000")
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestFindByIDsAndListBySubject() {
	ctx := context.Background()
	agent := identity.MustGenerate()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	m, err := exit.Create(agent, "platform-a", marker.ExitVoluntary, nil, exit.WithClock(func() time.Time { return base }))
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveExit(ctx, m))

	res, err := entry.CreateArrival(m, "platform-b", agent, entry.WithClock(func() time.Time { return base.Add(time.Minute) }))
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveArrival(ctx, res.Arrival))

	records, err := s.store.FindByIDs(ctx, []string{res.Arrival.ID, m.ID, "urn:exit:unknown"})
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(m.ID, records[0].ID)

	listed, err := s.store.ListBySubject(ctx, agent.DID())
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(m.ID, listed[1].ExitMarkerID)
}
