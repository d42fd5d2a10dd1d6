package services

import (
	"time"

	"github.com/rankfeed/rankfeed/internal/repository"
	"github.com/rankfeed/rankfeed/pkg/cache"
	"github.com/rankfeed/rankfeed/pkg/logger"
	"github.com/rankfeed/rankfeed/pkg/queue"
)

// Options 组装服务层所需的基础设施；Cache、Events、Storage 为空时对应功能降级为无操作
type Options struct {
	DB          *repository.Database
	Cache       *cache.RedisClient
	Events      queue.Publisher
	Storage     queue.Publisher
	IdentityTTL time.Duration
	GraphTTL    time.Duration
	Logger      *logger.Logger
}

type Services struct {
	Identity   *IdentityService
	Graph      *GraphService
	Engagement *EngagementService
	Feed       *FeedService
	User       *UserService
}

func New(opts Options) *Services {
	conn := opts.DB.DB

	userRepo := repository.NewUserRepository(conn)
	followRepo := repository.NewFollowRepository(conn)
	requestRepo := repository.NewFollowRequestRepository(conn)
	postRepo := repository.NewPostRepository(conn)
	rankingRepo := repository.NewRankingListRepository(conn)
	feedItemRepo := repository.NewFeedItemRepository(conn)
	retweetRepo := repository.NewRetweetRepository(conn)
	likeRepo := repository.NewLikeRepository(conn)
	counterRepo := repository.NewCounterRepository(conn)

	visibility := NewVisibilityPolicy(followRepo)
	following := NewFollowingCache(opts.Cache, opts.GraphTTL, opts.Logger)

	identity := NewIdentityService(userRepo, opts.Cache, opts.IdentityTTL, opts.Logger)
	graph := NewGraphService(opts.DB, userRepo, followRepo, requestRepo, visibility, following, opts.Events, opts.Logger)
	engagement := NewEngagementService(opts.DB, userRepo, likeRepo, counterRepo, visibility, opts.Events, opts.Logger)
	feed := NewFeedService(FeedServiceDeps{
		DB:         opts.DB,
		Users:      userRepo,
		Posts:      postRepo,
		Rankings:   rankingRepo,
		FeedItems:  feedItemRepo,
		Retweets:   retweetRepo,
		Likes:      likeRepo,
		Graph:      graph,
		Engagement: engagement,
		Visibility: visibility,
		Publisher:  opts.Events,
		Logger:     opts.Logger,
	})
	user := NewUserService(opts.DB, userRepo, followRepo, graph, opts.Events, opts.Storage, opts.Logger)

	return &Services{
		Identity:   identity,
		Graph:      graph,
		Engagement: engagement,
		Feed:       feed,
		User:       user,
	}
}
