package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comanda-app/comanda/internal/apperr"
)

// respondError maps a domain error to an HTTP response. The machine
// readable code travels in the body so clients can branch on it, e.g.
// re-fetching state on a conflict-class code before retrying.
func respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := code.HTTPStatus()

	body := gin.H{"code": string(code)}
	if e, ok := err.(*apperr.Error); ok {
		body["error"] = e.Message
		if len(e.Metadata) > 0 {
			body["metadata"] = e.Metadata
		}
	} else {
		// Internal detail stays in the log, not the response.
		body["error"] = "internal error"
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}
