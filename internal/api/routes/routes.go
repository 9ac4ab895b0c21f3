package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/voxgate/voxgate/internal/api/handlers"
)

type Deps struct {
	Chat   *handlers.ChatHandler
	Tokens *handlers.TokenHandler
	Avatar *handlers.AvatarHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/chat", d.Chat.Chat)

	api := r.Group("/api")
	api.GET("/getSpeechToken", d.Tokens.GetSpeechToken)
	api.GET("/getIceToken", d.Tokens.GetIceToken)
	api.POST("/connectAvatar", d.Avatar.Connect)
	api.POST("/speak", d.Avatar.Speak)
	api.POST("/stopSpeaking", d.Avatar.Stop)
	api.POST("/disconnectAvatar", d.Avatar.Disconnect)
}
