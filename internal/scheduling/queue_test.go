package scheduling

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueRejectsUnknownPriority(t *testing.T) {
	q := NewQueueManager(newFakeRepo())

	_, err := q.Enqueue(context.Background(), uuid.New(), uuid.New(), Priority("critical"), "x")
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestResolveRejectsNonTerminalStatus(t *testing.T) {
	repo := newFakeRepo()
	q := NewQueueManager(repo)

	entry, err := q.Enqueue(context.Background(), uuid.New(), uuid.New(), PriorityNormal, "control")
	require.NoError(t, err)

	_, err = q.Resolve(context.Background(), entry.ID, QueuePending, "still waiting")
	assert.Error(t, err)
}

func TestResolveIsFinal(t *testing.T) {
	repo := newFakeRepo()
	q := NewQueueManager(repo)
	ctx := context.Background()

	entry, err := q.Enqueue(ctx, uuid.New(), uuid.New(), PriorityNormal, "control")
	require.NoError(t, err)

	resolved, err := q.Resolve(ctx, entry.ID, QueueCancelled, "patient withdrew")
	require.NoError(t, err)
	assert.Equal(t, QueueCancelled, resolved.Status)
	require.NotNil(t, resolved.Outcome)
	assert.Equal(t, "patient withdrew", *resolved.Outcome)

	_, err = q.Resolve(ctx, entry.ID, QueueExpired, "too late")
	assert.ErrorIs(t, err, ErrEntryClosed)
}

func TestResolveMissingEntry(t *testing.T) {
	q := NewQueueManager(newFakeRepo())

	_, err := q.Resolve(context.Background(), uuid.New(), QueueCancelled, "x")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
