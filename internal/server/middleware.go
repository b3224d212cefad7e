package server

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/auth"
	"github.com/comanda-app/comanda/internal/models"
)

const actorKey = "actor"

// requestLogger logs every request with method, path, status and latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		slog.Info("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// authenticate validates the bearer token and stores the actor in the
// request context. Requests without a token are rejected.
func authenticate(tokens *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c, tokens)
		if err != nil {
			respondError(c, apperr.New(apperr.CodeUnauthenticated, err.Error()))
			return
		}
		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

// requireStaff rejects non-staff actors. Must run after authenticate.
func requireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).Role.Staff() {
			respondError(c, apperr.New(apperr.CodeForbidden, "staff access required"))
			return
		}
		c.Next()
	}
}

// bearerClaims extracts and validates the Authorization header.
func bearerClaims(c *gin.Context, tokens *auth.JWTManager) (*auth.Claims, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, auth.ErrMissingToken
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return tokens.Validate(tokenString)
}

func actorFrom(c *gin.Context) models.Actor {
	actor, _ := c.Get(actorKey)
	a, ok := actor.(models.Actor)
	if !ok {
		return models.Actor{}
	}
	return a
}
