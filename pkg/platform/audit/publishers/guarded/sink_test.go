package guarded

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "passage/pkg/platform/audit"
	"passage/pkg/platform/audit/store/memory"
	"passage/pkg/platform/circuit"
)

type flakySink struct {
	fail  bool
	count int
}

func (s *flakySink) Append(context.Context, audit.Event) error {
	if s.fail {
		return errors.New("broker unavailable")
	}
	s.count++
	return nil
}

func TestSink_DivertsToFallbackWhenOpen(t *testing.T) {
	ctx := context.Background()
	primary := &flakySink{fail: true}
	fallback := memory.NewInMemoryStore()
	breaker := circuit.New("audit-kafka", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	sink := New(primary, fallback, breaker, nil)
	event := audit.Event{Subject: "did:key:zAgent", Action: string(audit.EventExitMarkerCreated)}

	require.Error(t, sink.Append(ctx, event))
	require.NoError(t, sink.Append(ctx, event))
	assert.True(t, breaker.IsOpen())

	diverted, err := fallback.ListBySubject(ctx, "did:key:zAgent")
	require.NoError(t, err)
	assert.Len(t, diverted, 1)

	primary.fail = false
	require.NoError(t, sink.Append(ctx, event))
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, 1, primary.count)
}
