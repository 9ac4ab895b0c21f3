package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voxgate/voxgate/internal/services"
	"github.com/voxgate/voxgate/internal/utils"
)

type TokenHandler struct {
	creds  services.CredentialReader
	region string
}

func NewTokenHandler(creds services.CredentialReader, region string) *TokenHandler {
	return &TokenHandler{creds: creds, region: region}
}

// GetSpeechToken returns the current speech bearer token with the region as a
// side-channel header.
func (h *TokenHandler) GetSpeechToken(c *gin.Context) {
	tok, ok := h.creds.CurrentSpeechToken()
	if !ok {
		writeError(c, utils.E(utils.CodeUnavailable, "TokenHandler.GetSpeechToken", "speech token not available", nil))
		return
	}

	c.Header("SpeechRegion", h.region)
	c.String(http.StatusOK, tok)
}

// GetIceToken returns the relay credential, waiting briefly if the first
// background refresh has not completed yet.
func (h *TokenHandler) GetIceToken(c *gin.Context) {
	cred, err := h.creds.AwaitRelayCredential(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}
