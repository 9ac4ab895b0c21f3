package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/voxgate/voxgate/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

// browserSessionID returns the id minted by the browser-session middleware.
func browserSessionID(c *gin.Context) string {
	return c.GetString("browser_session_id")
}

// clientID resolves the logical avatar client: the ClientId header wins,
// falling back to the browser session's default client id.
func clientID(c *gin.Context) string {
	if v := c.GetHeader("ClientId"); v != "" {
		return v
	}
	if v := c.GetString("client_id"); v != "" {
		return v
	}
	return "default_client"
}

func headerOr(c *gin.Context, key, fallback string) string {
	if v := c.GetHeader(key); v != "" {
		return v
	}
	return fallback
}
