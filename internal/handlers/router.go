package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rankfeed/rankfeed/internal/middleware"
	"github.com/rankfeed/rankfeed/internal/services"
)

func NewRouter(svc *services.Services, auth *middleware.Authenticator, mode string) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	RegisterRoutes(router.Group("/api/v1"), svc, auth)
	return router
}

func RegisterRoutes(api *gin.RouterGroup, svc *services.Services, auth *middleware.Authenticator) {
	userHandler := NewUserHandler(svc.Identity, svc.User, svc.Graph)
	feedHandler := NewFeedHandler(svc.Feed, svc.Engagement)

	required := auth.RequireAuth()
	optional := auth.OptionalAuth()

	// 账号
	api.POST("/me", auth.RequireSubject(), userHandler.Provision)
	api.GET("/me", required, userHandler.Me)
	api.PATCH("/me", required, userHandler.UpdateProfile)
	api.GET("/usernames/:username", optional, userHandler.GetProfileByUsername)

	// 关系
	users := api.Group("/users/:id")
	{
		users.GET("", optional, userHandler.GetProfile)
		users.GET("/followers", optional, userHandler.Followers)
		users.GET("/following", optional, userHandler.Following)
		users.POST("/follow", required, userHandler.Follow)
		users.DELETE("/follow", required, userHandler.Unfollow)
		users.DELETE("/follow-request", required, userHandler.CancelFollowRequest)
		users.GET("/timeline", optional, feedHandler.ProfileTimeline)
		users.GET("/likes", optional, feedHandler.LikedTimeline)
	}
	api.GET("/follow-requests", required, userHandler.PendingRequests)
	api.POST("/follow-requests/:id/accept", required, userHandler.AcceptFollowRequest)
	api.POST("/follow-requests/:id/reject", required, userHandler.RejectFollowRequest)

	// 内容
	api.GET("/timeline/home", optional, feedHandler.HomeTimeline)
	api.POST("/posts", required, feedHandler.CreatePost)
	api.DELETE("/posts/:id", required, feedHandler.DeletePost)
	api.PUT("/ranking-lists/:id/status", required, feedHandler.PublishRankingList)

	items := api.Group("/feed-items/:id")
	{
		items.GET("", optional, feedHandler.GetFeedItem)
		items.POST("/retweet", required, feedHandler.Retweet)
		items.DELETE("/retweet", required, feedHandler.UndoRetweet)
		items.POST("/quote", required, feedHandler.QuoteRetweet)
	}
	api.DELETE("/quotes/:id", required, feedHandler.DeleteQuoteRetweet)

	// 点赞
	api.POST("/likes/:target/:id", required, feedHandler.Like)
	api.DELETE("/likes/:target/:id", required, feedHandler.Unlike)
	api.GET("/likes/:target/:id", optional, feedHandler.ListLikers)
}
