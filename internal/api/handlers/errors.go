package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// respondError maps err to a status and a client-safe body. Causes are only logged.
func respondError(c *gin.Context, logger zerolog.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Code == apperr.CodeInternal {
		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	status := apperr.HTTPStatus(e.Code)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("code", string(e.Code)).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, ErrorResponse{Error: e.Message, Details: e.Detail})
}
