// Package middleware 提供基于 JWT 的身份认证。
// token 的 sub 是外部身份ID，需要经 PrincipalResolver 映射为内部用户ID
package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"github.com/rankfeed/rankfeed/internal/config"
)

const (
	subjectKey = "auth_subject"
	userIDKey  = "user_id"
)

// PrincipalResolver 由 IdentityService 实现
type PrincipalResolver interface {
	Resolve(ctx context.Context, externalID string) (uuid.UUID, error)
}

type Authenticator struct {
	secret   []byte
	issuer   string
	resolver PrincipalResolver
}

func NewAuthenticator(cfg *config.JWTConfig, resolver PrincipalResolver) *Authenticator {
	return &Authenticator{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		resolver: resolver,
	}
}

// RequireSubject 只校验 token，不要求用户已建档，供首次登录建档使用
func (a *Authenticator) RequireSubject() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := a.subject(c)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(subjectKey, subject)
		c.Next()
	}
}

// RequireAuth 要求 token 有效且对应的用户存在
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.authenticate(c); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

// OptionalAuth 没有 Authorization 头或身份尚未建档时按匿名访问处理，带了无效 token 仍然拒绝
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		subject, err := a.subject(c)
		if err != nil {
			abort(c, err)
			return
		}
		userID, err := a.resolver.Resolve(c.Request.Context(), subject)
		switch {
		case err == nil:
			c.Set(userIDKey, userID)
		case !apperrors.Is(err, apperrors.KindUnauthenticated):
			abort(c, err)
			return
		}
		c.Set(subjectKey, subject)
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context) error {
	subject, err := a.subject(c)
	if err != nil {
		return err
	}
	userID, err := a.resolver.Resolve(c.Request.Context(), subject)
	if err != nil {
		return err
	}
	c.Set(subjectKey, subject)
	c.Set(userIDKey, userID)
	return nil
}

func (a *Authenticator) subject(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", apperrors.Unauthenticated("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", apperrors.Unauthenticated("invalid authorization header format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperrors.Unauthenticated("token expired")
		}
		return "", apperrors.Unauthenticated("invalid token")
	}
	if claims.Subject == "" {
		return "", apperrors.Unauthenticated("token subject missing")
	}
	return claims.Subject, nil
}

func abort(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	c.AbortWithStatusJSON(apperrors.HTTPStatus(kind), gin.H{
		"success": false,
		"error":   apperrors.PublicMessage(err),
		"code":    kind,
	})
}

// GetUserID 已认证请求的内部用户ID
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetViewer 匿名访问返回 nil
func GetViewer(c *gin.Context) *uuid.UUID {
	id, ok := GetUserID(c)
	if !ok {
		return nil
	}
	return &id
}

func GetSubject(c *gin.Context) string {
	return c.GetString(subjectKey)
}

// GenerateToken 签发 HS256 token，主要用于测试和本地调试
func GenerateToken(subject, secret, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
