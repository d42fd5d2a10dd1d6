package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rankfeed/rankfeed/internal/middleware"
	"github.com/rankfeed/rankfeed/internal/services"
)

type UserHandler struct {
	identityService *services.IdentityService
	userService     *services.UserService
	graphService    *services.GraphService
}

func NewUserHandler(identityService *services.IdentityService, userService *services.UserService, graphService *services.GraphService) *UserHandler {
	return &UserHandler{
		identityService: identityService,
		userService:     userService,
		graphService:    graphService,
	}
}

type ProvisionRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=30"`
	DisplayName string `json:"display_name" binding:"max=50"`
}

// Provision 首次登录建档，外部身份取自 token 的 sub
func (h *UserHandler) Provision(c *gin.Context) {
	var req ProvisionRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.identityService.Provision(c.Request.Context(), middleware.GetSubject(c), req.Username, req.DisplayName)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"display_name": user.DisplayName,
	})
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), &userID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), middleware.GetViewer(c), userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

func (h *UserHandler) GetProfileByUsername(c *gin.Context) {
	profile, err := h.userService.GetProfileByUsername(c.Request.Context(), middleware.GetViewer(c), c.Param("username"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	if _, err := h.userService.UpdateProfile(c.Request.Context(), userID, &req); err != nil {
		fail(c, err)
		return
	}
	profile, err := h.userService.GetProfile(c.Request.Context(), &userID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

func (h *UserHandler) Follow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.graphService.FollowUser(c.Request.Context(), userID, targetID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"follow_status": status})
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.graphService.UnfollowUser(c.Request.Context(), userID, targetID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"follow_status": status})
}

func (h *UserHandler) CancelFollowRequest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.graphService.CancelFollowRequest(c.Request.Context(), userID, targetID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"follow_status": status})
}

func (h *UserHandler) AcceptFollowRequest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.graphService.AcceptFollowRequest(c.Request.Context(), requestID, userID); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (h *UserHandler) RejectFollowRequest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.graphService.RejectFollowRequest(c.Request.Context(), requestID, userID); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (h *UserHandler) PendingRequests(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}

	result, err := h.graphService.PendingRequests(c.Request.Context(), userID, page)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *UserHandler) Followers(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}

	result, err := h.graphService.Followers(c.Request.Context(), middleware.GetViewer(c), userID, page)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *UserHandler) Following(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}

	result, err := h.graphService.Following(c.Request.Context(), middleware.GetViewer(c), userID, page)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}
