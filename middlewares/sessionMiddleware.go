package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/rentease_backend/appctx"
	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/utils"
)

const sessionKeyPrefix = "Session:"

// SessionData is what a login stores in redis against the opaque token.
type SessionData struct {
	UserId     int    `json:"user_id"`
	LandlordId int    `json:"landlord_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

// SessionMiddleware resolves the token header against redis and loads the
// session into the request context. A missing token passes through; the
// RequireAuth guard on protected routes rejects it later. An invalid token
// is rejected here.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		var session SessionData
		found, err := config.GetRedisObject(sessionKeyPrefix+token, &session)
		if err != nil || !found {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := appctx.Set(c.Request.Context(), appctx.ContextKeyToken, token)
		ctx = appctx.Set(ctx, appctx.ContextKeyUserId, session.UserId)
		ctx = appctx.Set(ctx, appctx.ContextKeyLandlordId, session.LandlordId)
		ctx = appctx.Set(ctx, appctx.ContextKeyUserEmail, session.Email)
		ctx = appctx.Set(ctx, appctx.ContextKeyUserRole, session.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuth rejects requests that did not carry a valid session.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := appctx.GetInt(c.Request.Context(), appctx.ContextKeyLandlordId); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// StoreSession writes the session to redis and returns the opaque token the
// client must send back in the token header.
func StoreSession(session SessionData, lifespan time.Duration) (string, error) {
	token, err := utils.NewResetToken()
	if err != nil {
		return "", err
	}
	if err := config.SetRedisObject(sessionKeyPrefix+token, session, lifespan); err != nil {
		return "", err
	}
	return token, nil
}

// ClearSession invalidates the token (logout).
func ClearSession(token string) error {
	return config.RemoveRedisKey(sessionKeyPrefix + token)
}
