package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/voxgate/voxgate/internal/models"
	"github.com/voxgate/voxgate/internal/services"
	"github.com/voxgate/voxgate/internal/utils"
)

const (
	defaultVoice     = "en-US-JennyNeural"
	defaultStyle     = "casual-sitting"
	defaultCharacter = "lisa"
)

type AvatarHandler struct {
	avatars services.AvatarService
	log     *logrus.Logger
}

func NewAvatarHandler(avatars services.AvatarService, log *logrus.Logger) *AvatarHandler {
	return &AvatarHandler{avatars: avatars, log: log}
}

// Connect negotiates an avatar session. The request body is the caller's
// local SDP; avatar parameters travel in headers.
func (h *AvatarHandler) Connect(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AvatarHandler.Connect", "missing local session description", err))
		return
	}

	p := models.AvatarParams{
		ClientID:  clientID(c),
		Voice:     headerOr(c, "TtsVoice", defaultVoice),
		Style:     headerOr(c, "AvatarStyle", defaultStyle),
		Character: headerOr(c, "AvatarCharacter", defaultCharacter),
		Custom:    strings.EqualFold(c.GetHeader("IsCustomAvatar"), "true"),
		LocalSDP:  string(body),
	}

	remoteSDP, err := h.avatars.Connect(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.String(http.StatusOK, remoteSDP)
}

func (h *AvatarHandler) Speak(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AvatarHandler.Speak", "missing ssml body", err))
		return
	}

	resultID, err := h.avatars.Speak(c.Request.Context(), clientID(c), string(body))
	if err != nil {
		writeError(c, err)
		return
	}
	c.String(http.StatusOK, resultID)
}

func (h *AvatarHandler) Stop(c *gin.Context) {
	if err := h.avatars.Stop(c.Request.Context(), clientID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.String(http.StatusOK, "Speaking stopped")
}

func (h *AvatarHandler) Disconnect(c *gin.Context) {
	if err := h.avatars.Disconnect(c.Request.Context(), clientID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.String(http.StatusOK, "Disconnected")
}
