package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/internal/repository"
	"github.com/rankfeed/rankfeed/internal/testutil"
	"github.com/rankfeed/rankfeed/pkg/logger"
	"github.com/rankfeed/rankfeed/pkg/queue"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingPublisher 记录发布的事件，代替 Kafka
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event, ok := value.(queue.Event); ok {
		p.events = append(p.events, event)
	}
	return nil
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]queue.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func (p *recordingPublisher) ofType(t queue.EventType) []queue.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	ctx     context.Context
	db      *gorm.DB
	redis   *miniredis.Miniredis
	svc     *Services
	events  *recordingPublisher
	storage *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	redis, mr := testutil.NewRedis(t)
	events := &recordingPublisher{}
	storage := &recordingPublisher{}

	svc := New(Options{
		DB:          repository.Wrap(db),
		Cache:       redis,
		Events:      events,
		Storage:     storage,
		IdentityTTL: time.Minute,
		GraphTTL:    time.Minute,
		Logger:      logger.Discard(),
	})
	return &testEnv{
		ctx:     context.Background(),
		db:      db,
		redis:   mr,
		svc:     svc,
		events:  events,
		storage: storage,
	}
}

func (e *testEnv) user(t *testing.T, username string, private bool) *models.User {
	return testutil.CreateUser(t, e.db, username, private)
}

func (e *testEnv) post(t *testing.T, author *models.User, content string) *FeedItemView {
	t.Helper()
	item, err := e.svc.Feed.CreatePost(e.ctx, author.ID, content, "")
	require.NoError(t, err)
	return item
}

func (e *testEnv) follow(t *testing.T, follower, following *models.User) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.Follow{FollowerID: follower.ID, FollowingID: following.ID}).Error)
	e.svc.Graph.InvalidateFollowing(e.ctx, follower.ID)
}

func (e *testEnv) rankingList(t *testing.T, owner *models.User, title string) *models.RankingList {
	t.Helper()
	list := &models.RankingList{UserID: owner.ID, Title: title}
	require.NoError(t, e.db.Create(list).Error)
	return list
}

func (e *testEnv) publishedList(t *testing.T, owner *models.User, title string) *models.RankingList {
	t.Helper()
	list := &models.RankingList{UserID: owner.ID, Title: title, Status: models.RankingListPublished}
	require.NoError(t, e.db.Create(list).Error)
	return list
}

func (e *testEnv) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func (e *testEnv) likeCount(t *testing.T, postID uuid.UUID) int64 {
	t.Helper()
	var post models.Post
	require.NoError(t, e.db.First(&post, "id = ?", postID).Error)
	return post.LikeCount
}

func (e *testEnv) quoteCount(t *testing.T, feedItemID uuid.UUID) int64 {
	t.Helper()
	var item models.FeedItem
	require.NoError(t, e.db.First(&item, "id = ?", feedItemID).Error)
	return item.QuoteRetweetCount
}

func ids(views []*FeedItemView) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}
