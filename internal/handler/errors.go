package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shelfmark/backend/internal/model"
	"github.com/shelfmark/backend/internal/service"
)

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{Error: message})
}

// writeAuthError maps the service error taxonomy onto HTTP statuses. Every
// authentication failure collapses to the same 401 body.
func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingField), errors.Is(err, service.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidRole):
		writeError(c, http.StatusUnprocessableEntity, "role not valid")
	case errors.Is(err, service.ErrConflict):
		writeError(c, http.StatusConflict, "already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrUnauthorized):
		writeError(c, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrForbidden):
		writeError(c, http.StatusForbidden, "permission denied")
	case errors.Is(err, service.ErrNotFound):
		writeError(c, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrFederationDisabled):
		writeError(c, http.StatusNotFound, "federated login disabled")
	case errors.Is(err, service.ErrProviderDataIncomplete):
		writeError(c, http.StatusUnprocessableEntity, "identity provider did not return a verified email")
	case errors.Is(err, service.ErrProviderUnavailable):
		writeError(c, http.StatusBadGateway, "identity provider unavailable")
	default:
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "server error")
	}
}
