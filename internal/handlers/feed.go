package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"github.com/rankfeed/rankfeed/internal/middleware"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/internal/services"
)

type FeedHandler struct {
	feedService       *services.FeedService
	engagementService *services.EngagementService
}

func NewFeedHandler(feedService *services.FeedService, engagementService *services.EngagementService) *FeedHandler {
	return &FeedHandler{
		feedService:       feedService,
		engagementService: engagementService,
	}
}

type CreatePostRequest struct {
	Content  string `json:"content"`
	ImageKey string `json:"image_key"`
}

type QuoteRequest struct {
	Comment  string `json:"comment"`
	ImageKey string `json:"image_key"`
}

type RankingStatusRequest struct {
	Status models.RankingListStatus `json:"status" binding:"required,oneof=DRAFT PUBLISHED"`
}

func (h *FeedHandler) CreatePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.feedService.CreatePost(c.Request.Context(), userID, req.Content, req.ImageKey)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, item)
}

func (h *FeedHandler) DeletePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.feedService.DeletePost(c.Request.Context(), userID, postID); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (h *FeedHandler) GetFeedItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	item, err := h.feedService.GetFeedItem(c.Request.Context(), middleware.GetViewer(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, item)
}

func (h *FeedHandler) Retweet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	item, err := h.feedService.Retweet(c.Request.Context(), userID, id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, item)
}

func (h *FeedHandler) UndoRetweet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.feedService.UndoRetweet(c.Request.Context(), userID, id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (h *FeedHandler) QuoteRetweet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req QuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.feedService.QuoteRetweet(c.Request.Context(), userID, id, req.Comment, req.ImageKey)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, item)
}

func (h *FeedHandler) DeleteQuoteRetweet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.feedService.DeleteQuoteRetweet(c.Request.Context(), userID, id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// PublishRankingList DRAFT 时撤回动态，data 为空
func (h *FeedHandler) PublishRankingList(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req RankingStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.feedService.PublishRankingList(c.Request.Context(), userID, id, req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	if item == nil {
		noContent(c)
		return
	}
	respond(c, http.StatusOK, item)
}

func (h *FeedHandler) HomeTimeline(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}

	result, err := h.feedService.HomeTimeline(c.Request.Context(), middleware.GetViewer(c), page)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *FeedHandler) ProfileTimeline(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}

	result, err := h.feedService.ProfileTimeline(c.Request.Context(), middleware.GetViewer(c), userID, page)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *FeedHandler) LikedTimeline(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}

	result, err := h.feedService.LikedTimeline(c.Request.Context(), middleware.GetViewer(c), userID, page)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func likeTarget(c *gin.Context) (models.LikeTarget, bool) {
	target, err := models.ParseLikeTarget(c.Param("target"))
	if err != nil {
		fail(c, apperrors.Validation(err.Error()))
		return "", false
	}
	return target, true
}

func (h *FeedHandler) Like(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	target, ok := likeTarget(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engagementService.Like(c.Request.Context(), userID, target, id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (h *FeedHandler) Unlike(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	target, ok := likeTarget(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engagementService.Unlike(c.Request.Context(), userID, target, id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (h *FeedHandler) ListLikers(c *gin.Context) {
	target, ok := likeTarget(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}

	result, err := h.engagementService.ListLikers(c.Request.Context(), middleware.GetViewer(c), target, id, page)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}
