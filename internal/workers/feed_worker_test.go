package workers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/pkg/logger"
	"github.com/rankfeed/rankfeed/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounters struct {
	likes  []uuid.UUID
	target []models.LikeTarget
	quotes []uuid.UUID
}

func (f *fakeCounters) ReconcileLikeCount(_ context.Context, target models.LikeTarget, id uuid.UUID) error {
	f.target = append(f.target, target)
	f.likes = append(f.likes, id)
	return nil
}

func (f *fakeCounters) ReconcileQuoteCount(_ context.Context, id uuid.UUID) error {
	f.quotes = append(f.quotes, id)
	return nil
}

type fakeInvalidator struct {
	users []uuid.UUID
}

func (f *fakeInvalidator) InvalidateFollowing(_ context.Context, userID uuid.UUID) {
	f.users = append(f.users, userID)
}

func message(t *testing.T, eventType queue.EventType, data interface{}) queue.Message {
	t.Helper()
	payload, err := json.Marshal(queue.NewEvent(eventType, data))
	require.NoError(t, err)
	return queue.Message{Value: payload}
}

func newWorker() (*FeedWorker, *fakeCounters, *fakeInvalidator) {
	counters := &fakeCounters{}
	following := &fakeInvalidator{}
	return NewFeedWorker(counters, following, nil, logger.Discard()), counters, following
}

func TestFeedWorker_ReconcilesLikeCounts(t *testing.T) {
	w, counters, _ := newWorker()
	target := uuid.New()

	err := w.Handle(context.Background(), message(t, queue.EventLikeDeleted, queue.LikeEventData{
		UserID:   uuid.NewString(),
		Target:   string(models.LikeTargetRankingList),
		TargetID: target.String(),
	}))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{target}, counters.likes)
	assert.Equal(t, []models.LikeTarget{models.LikeTargetRankingList}, counters.target)
}

func TestFeedWorker_ReconcilesQuoteCounts(t *testing.T) {
	w, counters, _ := newWorker()
	quoted := uuid.New()

	err := w.Handle(context.Background(), message(t, queue.EventQuoteCreated, queue.QuoteEventData{
		UserID:     uuid.NewString(),
		FeedItemID: uuid.NewString(),
		QuotedID:   quoted.String(),
	}))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{quoted}, counters.quotes)
}

func TestFeedWorker_InvalidatesFollowingCache(t *testing.T) {
	w, _, following := newWorker()
	follower := uuid.New()

	for _, eventType := range []queue.EventType{queue.EventFollowCreated, queue.EventFollowRequestAccepted} {
		err := w.Handle(context.Background(), message(t, eventType, queue.FollowEventData{
			FollowerID:  follower.String(),
			FollowingID: uuid.NewString(),
		}))
		require.NoError(t, err)
	}
	assert.Equal(t, []uuid.UUID{follower, follower}, following.users)
}

func TestFeedWorker_RejectsBadPayloads(t *testing.T) {
	w, counters, _ := newWorker()

	err := w.Handle(context.Background(), message(t, queue.EventLikeCreated, queue.LikeEventData{
		Target:   "comment",
		TargetID: uuid.NewString(),
	}))
	assert.Error(t, err)
	assert.Empty(t, counters.likes)

	err = w.Handle(context.Background(), queue.Message{Value: []byte("{")})
	assert.Error(t, err)
}

func TestFeedWorker_IgnoresUnrelatedEvents(t *testing.T) {
	w, counters, following := newWorker()

	err := w.Handle(context.Background(), message(t, queue.EventPostCreated, queue.PostEventData{PostID: uuid.NewString()}))
	require.NoError(t, err)
	assert.Empty(t, counters.likes)
	assert.Empty(t, following.users)
}
