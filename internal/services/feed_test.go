package services

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_CreatePostValidatesContent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)

	tests := []struct {
		name     string
		content  string
		imageKey string
		valid    bool
	}{
		{name: "plain text", content: "hello", valid: true},
		{name: "trimmed to empty", content: "   ", valid: false},
		{name: "image only", content: "", imageKey: "images/cat.png", valid: true},
		{name: "max length", content: strings.Repeat("犬", MaxContentLength), valid: true},
		{name: "too long", content: strings.Repeat("a", MaxContentLength+1), valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := env.svc.Feed.CreatePost(env.ctx, alice.ID, tt.content, tt.imageKey)
			if !tt.valid {
				assert.True(t, apperrors.Is(err, apperrors.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.FeedItemPost, item.Type)
			require.NotNil(t, item.Post)
			assert.Equal(t, strings.TrimSpace(tt.content), item.Post.Content)
		})
	}
}

func TestFeed_DuplicateRetweetCreatesOneEntry(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	item := env.post(t, alice, "retweet me")

	first, err := env.svc.Feed.Retweet(env.ctx, bob.ID, item.ID)
	require.NoError(t, err)
	second, err := env.svc.Feed.Retweet(env.ctx, bob.ID, item.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), env.count(t, &models.Retweet{}, "user_id = ? AND feed_item_id = ?", bob.ID, item.ID))
	assert.Equal(t, int64(1), env.count(t, &models.FeedItem{}, "user_id = ? AND type = ?", bob.ID, models.FeedItemRetweet))
	assert.Len(t, env.events.ofType(queue.EventRetweetCreated), 1)

	view, err := env.svc.Feed.GetFeedItem(env.ctx, &bob.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.RetweetCount)
	assert.True(t, view.RetweetedByViewer)
}

func TestFeed_ConcurrentRetweets(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	item := env.post(t, alice, "race")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Feed.Retweet(env.ctx, bob.ID, item.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), env.count(t, &models.Retweet{}, "feed_item_id = ?", item.ID))
	assert.Equal(t, int64(1), env.count(t, &models.FeedItem{}, "retweet_of_feed_item_id = ?", item.ID))
}

func TestFeed_RetweetRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	item := env.post(t, alice, "again and again")

	_, err := env.svc.Feed.Retweet(env.ctx, bob.ID, item.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Feed.UndoRetweet(env.ctx, bob.ID, item.ID))
	// 重复撤销不报错
	require.NoError(t, env.svc.Feed.UndoRetweet(env.ctx, bob.ID, item.ID))

	assert.Equal(t, int64(0), env.count(t, &models.Retweet{}, "feed_item_id = ?", item.ID))
	assert.Equal(t, int64(0), env.count(t, &models.FeedItem{}, "retweet_of_feed_item_id = ?", item.ID))

	again, err := env.svc.Feed.Retweet(env.ctx, bob.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeedItemRetweet, again.Type)
	assert.Equal(t, int64(1), env.count(t, &models.Retweet{}, "feed_item_id = ?", item.ID))
	assert.Len(t, env.events.ofType(queue.EventRetweetDeleted), 1)
}

func TestFeed_RetweetOfRetweetTargetsOriginal(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	carol := env.user(t, "carol", false)
	item := env.post(t, alice, "original")

	bobRetweet, err := env.svc.Feed.Retweet(env.ctx, bob.ID, item.ID)
	require.NoError(t, err)

	carolRetweet, err := env.svc.Feed.Retweet(env.ctx, carol.ID, bobRetweet.ID)
	require.NoError(t, err)
	require.NotNil(t, carolRetweet.RetweetOfFeedItemID)
	assert.Equal(t, item.ID, *carolRetweet.RetweetOfFeedItemID)
	require.NotNil(t, carolRetweet.Origin)
	assert.Equal(t, item.ID, carolRetweet.Origin.ID)
	assert.Equal(t, int64(2), carolRetweet.Origin.RetweetCount)

	// 通过转发条目撤销同样作用在原条目上
	require.NoError(t, env.svc.Feed.UndoRetweet(env.ctx, carol.ID, bobRetweet.ID))
	assert.Equal(t, int64(1), env.count(t, &models.Retweet{}, "feed_item_id = ?", item.ID))
}

func TestFeed_RetweetNotFound(t *testing.T) {
	env := newTestEnv(t)
	bob := env.user(t, "bob", false)

	_, err := env.svc.Feed.Retweet(env.ctx, bob.ID, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestFeed_PrivateContentCannotBeRetweetedByStrangers(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", true)
	bob := env.user(t, "bob", false)
	item := env.post(t, alice, "followers only")

	_, err := env.svc.Feed.Retweet(env.ctx, bob.ID, item.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindPermissionDenied))

	_, err = env.svc.Feed.QuoteRetweet(env.ctx, bob.ID, item.ID, "look", "")
	assert.True(t, apperrors.Is(err, apperrors.KindPermissionDenied))

	assert.Equal(t, int64(0), env.count(t, &models.Retweet{}, "feed_item_id = ?", item.ID))
	assert.Equal(t, int64(0), env.quoteCount(t, item.ID))

	env.follow(t, bob, alice)
	_, err = env.svc.Feed.Retweet(env.ctx, bob.ID, item.ID)
	require.NoError(t, err)
}

func TestFeed_QuoteRetweetCounts(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	item := env.post(t, alice, "quotable")

	q1, err := env.svc.Feed.QuoteRetweet(env.ctx, bob.ID, item.ID, "first take", "")
	require.NoError(t, err)
	q2, err := env.svc.Feed.QuoteRetweet(env.ctx, bob.ID, item.ID, "second take", "")
	require.NoError(t, err)
	assert.NotEqual(t, q1.ID, q2.ID)
	assert.Equal(t, int64(2), env.quoteCount(t, item.ID))

	require.NotNil(t, q1.Origin)
	assert.Equal(t, item.ID, q1.Origin.ID)
	require.NotNil(t, q1.Post)
	assert.Equal(t, "first take", q1.Post.Content)

	require.NoError(t, env.svc.Feed.DeleteQuoteRetweet(env.ctx, bob.ID, q1.ID))
	assert.Equal(t, int64(1), env.quoteCount(t, item.ID))
	assert.Equal(t, int64(0), env.count(t, &models.Post{}, "id = ?", q1.Post.ID))

	// 人为清零后再删除，计数保持为0
	require.NoError(t, env.db.Model(&models.FeedItem{}).Where("id = ?", item.ID).UpdateColumn("quote_retweet_count", 0).Error)
	require.NoError(t, env.svc.Feed.DeleteQuoteRetweet(env.ctx, bob.ID, q2.ID))
	assert.Equal(t, int64(0), env.quoteCount(t, item.ID))

	assert.Len(t, env.events.ofType(queue.EventQuoteCreated), 2)
	assert.Len(t, env.events.ofType(queue.EventQuoteDeleted), 2)
}

func TestFeed_DeleteQuoteRetweetChecks(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	item := env.post(t, alice, "quotable")
	quote, err := env.svc.Feed.QuoteRetweet(env.ctx, bob.ID, item.ID, "mine", "")
	require.NoError(t, err)

	err = env.svc.Feed.DeleteQuoteRetweet(env.ctx, alice.ID, quote.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindPermissionDenied))

	err = env.svc.Feed.DeleteQuoteRetweet(env.ctx, alice.ID, item.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	err = env.svc.Feed.DeleteQuoteRetweet(env.ctx, bob.ID, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	assert.Equal(t, int64(1), env.quoteCount(t, item.ID))
}

func TestFeed_DeletePostCascades(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	item := env.post(t, alice, "short lived")
	postID := item.Post.ID

	_, err := env.svc.Feed.Retweet(env.ctx, bob.ID, item.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Engagement.Like(env.ctx, bob.ID, models.LikeTargetPost, postID))

	err = env.svc.Feed.DeletePost(env.ctx, bob.ID, postID)
	assert.True(t, apperrors.Is(err, apperrors.KindPermissionDenied))

	require.NoError(t, env.svc.Feed.DeletePost(env.ctx, alice.ID, postID))

	assert.Equal(t, int64(0), env.count(t, &models.Post{}, "id = ?", postID))
	assert.Equal(t, int64(0), env.count(t, &models.FeedItem{}, "id = ? OR retweet_of_feed_item_id = ?", item.ID, item.ID))
	assert.Equal(t, int64(0), env.count(t, &models.Retweet{}, "feed_item_id = ?", item.ID))
	assert.Equal(t, int64(0), env.count(t, &models.Like{}, "post_id = ?", postID))

	err = env.svc.Feed.DeletePost(env.ctx, alice.ID, postID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestFeed_DeletingQuoteCommentPostReleasesCount(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	item := env.post(t, alice, "quotable")
	quote, err := env.svc.Feed.QuoteRetweet(env.ctx, bob.ID, item.ID, "comment", "")
	require.NoError(t, err)

	require.NoError(t, env.svc.Feed.DeletePost(env.ctx, bob.ID, quote.Post.ID))
	assert.Equal(t, int64(0), env.quoteCount(t, item.ID))
	assert.Equal(t, int64(0), env.count(t, &models.FeedItem{}, "id = ?", quote.ID))
}

func TestFeed_PublishRankingList(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	list := env.rankingList(t, alice, "top films")

	_, err := env.svc.Feed.PublishRankingList(env.ctx, bob.ID, list.ID, models.RankingListPublished)
	assert.True(t, apperrors.Is(err, apperrors.KindPermissionDenied))

	first, err := env.svc.Feed.PublishRankingList(env.ctx, alice.ID, list.ID, models.RankingListPublished)
	require.NoError(t, err)
	assert.Equal(t, models.FeedItemRankingUpdate, first.Type)
	require.NotNil(t, first.RankingList)
	assert.Equal(t, models.RankingListPublished, first.RankingList.Status)

	second, err := env.svc.Feed.PublishRankingList(env.ctx, alice.ID, list.ID, models.RankingListPublished)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
	assert.Equal(t, int64(1), env.count(t, &models.FeedItem{}, "ranking_list_id = ?", list.ID))

	_, err = env.svc.Feed.Retweet(env.ctx, bob.ID, first.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Engagement.Like(env.ctx, bob.ID, models.LikeTargetRankingList, list.ID))

	// 改回草稿撤下动态、转发和点赞
	retracted, err := env.svc.Feed.PublishRankingList(env.ctx, alice.ID, list.ID, models.RankingListDraft)
	require.NoError(t, err)
	assert.Nil(t, retracted)
	assert.Equal(t, int64(0), env.count(t, &models.FeedItem{}, "ranking_list_id = ?", list.ID))
	assert.Equal(t, int64(0), env.count(t, &models.FeedItem{}, "retweet_of_feed_item_id = ?", first.ID))
	assert.Equal(t, int64(0), env.count(t, &models.Retweet{}, "feed_item_id = ?", first.ID))
	assert.Len(t, env.events.ofType(queue.EventRankingRetracted), 1)
	assert.Zero(t, env.count(t, &models.Like{}, "ranking_list_id = ?", list.ID))
	var draft models.RankingList
	require.NoError(t, env.db.First(&draft, "id = ?", list.ID).Error)
	assert.Equal(t, models.RankingListDraft, draft.Status)
	assert.Zero(t, draft.LikeCount)

	err = env.svc.Engagement.Like(env.ctx, bob.ID, models.LikeTargetRankingList, list.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	// 重新发布生成新的动态
	republished, err := env.svc.Feed.PublishRankingList(env.ctx, alice.ID, list.ID, models.RankingListPublished)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, republished.ID)
	require.NoError(t, env.svc.Engagement.Like(env.ctx, bob.ID, models.LikeTargetRankingList, list.ID))

	_, err = env.svc.Feed.PublishRankingList(env.ctx, alice.ID, list.ID, "ARCHIVED")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = env.svc.Feed.PublishRankingList(env.ctx, alice.ID, uuid.New(), models.RankingListPublished)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
