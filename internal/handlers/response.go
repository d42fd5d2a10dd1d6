package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"github.com/rankfeed/rankfeed/internal/middleware"
	"github.com/rankfeed/rankfeed/internal/repository"
)

// 统一响应格式 {"success", "error", "code", "data"}

func respond(c *gin.Context, status int, data interface{}) {
	body := gin.H{"success": true}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func fail(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	c.JSON(apperrors.HTTPStatus(kind), gin.H{
		"success": false,
		"error":   apperrors.PublicMessage(err),
		"code":    kind,
	})
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, apperrors.Validation("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, apperrors.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func pageRequest(c *gin.Context) (repository.PageRequest, bool) {
	page, err := repository.ParsePageRequest(c.Query("limit"), c.Query("cursor"))
	if err != nil {
		fail(c, err)
		return repository.PageRequest{}, false
	}
	return page, true
}

// currentUser RequireAuth 之后调用，缺失时按未认证处理
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		fail(c, apperrors.Unauthenticated("user not authenticated"))
		return uuid.Nil, false
	}
	return id, true
}

func noContent(c *gin.Context) {
	respond(c, http.StatusOK, nil)
}
