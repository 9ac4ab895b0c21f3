package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/voxgate/voxgate/internal/services"
	"github.com/voxgate/voxgate/internal/utils"
)

type ChatHandler struct {
	chat services.ChatService
	log  *logrus.Logger
}

func NewChatHandler(chat services.ChatService, log *logrus.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, log: log}
}

type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Chat", "no message provided", err))
		return
	}

	reply, err := h.chat.Send(c.Request.Context(), browserSessionID(c), req.Message)
	if err != nil {
		// the bot may still be processing; answer with the placeholder rather
		// than a hard failure
		if utils.IsCode(err, utils.CodeNoReply) {
			h.log.WithError(err).Warn("no bot reply after retries, returning placeholder")
			c.JSON(http.StatusOK, ChatResponse{Response: services.NoReplyText})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Response: reply})
}
