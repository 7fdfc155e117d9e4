package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"courseoj/internal/access"
	pkgerrors "courseoj/pkg/errors"
	"courseoj/pkg/utils/contextkey"
	"courseoj/pkg/utils/response"
)

const (
	userIDContextKey   = "user_id"
	userRoleContextKey = "user_role"
)

// tokenClaims is the payload the account service signs into access tokens.
type tokenClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the Bearer token and attaches the caller
// identity to the request.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "missing bearer token")
			return
		}

		caller, err := parseToken(token, secret)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		c.Set(userIDContextKey, caller.ID)
		c.Set(userRoleContextKey, string(caller.Role))

		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, caller.ID)
		ctx = context.WithValue(ctx, contextkey.UserRole, string(caller.Role))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireCapability aborts requests whose caller role lacks the capability.
// Must run after AuthMiddleware.
func RequireCapability(cap access.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CurrentCaller(c)
		if !ok {
			response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "")
			return
		}
		if err := access.Evaluate(caller, access.RequireCapability(cap)); err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// CurrentCaller returns the authenticated caller stored by AuthMiddleware.
func CurrentCaller(c *gin.Context) (access.Caller, bool) {
	id := c.GetInt64(userIDContextKey)
	roleValue := c.GetString(userRoleContextKey)
	if id == 0 || roleValue == "" {
		return access.Caller{}, false
	}
	role, err := access.ParseRole(roleValue)
	if err != nil {
		return access.Caller{}, false
	}
	return access.Caller{ID: id, Role: role}, true
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseToken(token, secret string) (access.Caller, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, pkgerrors.New(pkgerrors.TokenInvalid)
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return access.Caller{}, pkgerrors.New(pkgerrors.TokenExpired)
		}
		return access.Caller{}, pkgerrors.Wrap(err, pkgerrors.TokenInvalid)
	}
	if !parsed.Valid || claims.UserID == 0 {
		return access.Caller{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}

	role, err := access.ParseRole(claims.Role)
	if err != nil {
		return access.Caller{}, err
	}
	return access.Caller{ID: claims.UserID, Role: role}, nil
}
