package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/vorbi/internal/config"
	"github.com/mbeoliero/vorbi/pkg/errcode"
	"github.com/mbeoliero/vorbi/pkg/jwt"
	"github.com/mbeoliero/vorbi/pkg/response"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer token
	BearerPrefix = "Bearer "
	// UserIdKey is the context key for user Id
	UserIdKey = "user_id"
	// PlatformIdKey is the context key for platform Id
	PlatformIdKey = "platform_id"
)

// JWTAuth is the JWT authentication middleware
func JWTAuth() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		authHeader := string(c.GetHeader(AuthorizationHeader))
		if authHeader == "" {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenMissing)
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenInvalid)
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		claims, err := ParseTokenWithFallback(tokenString, config.GlobalConfig)
		if err != nil {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenInvalid)
			c.Abort()
			return
		}

		// Store user info in context
		c.Set(UserIdKey, claims.UserId)
		c.Set(PlatformIdKey, claims.PlatformId)

		c.Next(ctx)
	}
}

// ParseTokenWithFallback tries a natively issued token first, then
// falls back to a marketplace identity token when enabled.
func ParseTokenWithFallback(tokenString string, cfg *config.Config) (*jwt.Claims, error) {
	claims, err := jwt.ParseToken(tokenString, cfg.JWT.Secret)
	if err == nil {
		return claims, nil
	}

	if cfg.ExternalJWT.Enabled {
		return jwt.ParseExternalToken(
			tokenString,
			cfg.ExternalJWT.Secret,
			cfg.ExternalJWT.DefaultRole,
			cfg.ExternalJWT.DefaultPlatformId,
		)
	}

	return nil, err
}

// GetUserId gets user Id from context
func GetUserId(c *app.RequestContext) string {
	if v, ok := c.Get(UserIdKey); ok {
		return v.(string)
	}
	return ""
}

// GetPlatformId gets platform Id from context
func GetPlatformId(c *app.RequestContext) int {
	if v, ok := c.Get(PlatformIdKey); ok {
		return v.(int)
	}
	return 0
}
