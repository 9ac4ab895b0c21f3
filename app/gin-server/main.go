package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/voxgate/voxgate/config"
	"github.com/voxgate/voxgate/internal/api/handlers"
	"github.com/voxgate/voxgate/internal/api/middleware"
	"github.com/voxgate/voxgate/internal/api/routes"
	"github.com/voxgate/voxgate/internal/clock"
	"github.com/voxgate/voxgate/internal/logger"
	"github.com/voxgate/voxgate/internal/providers/directline"
	"github.com/voxgate/voxgate/internal/providers/speech"
	memoryrepo "github.com/voxgate/voxgate/internal/repositories/memory"
	redisrepo "github.com/voxgate/voxgate/internal/repositories/redis"
	"github.com/voxgate/voxgate/internal/services"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	cfg := config.Load()
	if missing := cfg.MissingRequired(); len(missing) > 0 {
		log.WithField("vars", strings.Join(missing, ", ")).
			Error("missing required environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credential refresh loops run for the whole process lifetime
	creds := &services.CredentialRefresher{
		Tokens: &speech.AzureTokenSource{Region: cfg.SpeechRegion, Key: cfg.SpeechKey},
		Logger: log,
	}
	if err := creds.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start credential refresher")
	}

	var store services.ConversationStore = memoryrepo.NewConversationRepository()
	if cfg.RedisAddr != "" {
		rdb, err := config.InitRedis(cfg.RedisAddr)
		if err != nil {
			log.WithError(err).Fatal("redis init failed")
		}
		log.Info("redis connected")
		store = redisrepo.NewConversationRepository(rdb)
	}

	bot := directline.NewClient(cfg.DirectLineSecret)
	convs := services.NewConversationService(bot, store, log)
	chat := services.NewChatService(bot, convs, clock.SystemSleeper{}, log)
	avatars := services.NewAvatarService(creds, &speech.AzureSynthesizer{
		Region: cfg.SpeechRegion,
		Key:    cfg.SpeechKey,
	}, log)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.BrowserSession(cfg.SecretKey), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Chat:   handlers.NewChatHandler(chat, log),
		Tokens: handlers.NewTokenHandler(creds, cfg.SpeechRegion),
		Avatar: handlers.NewAvatarHandler(avatars, log),
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("port", cfg.Port).Info("server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server error")
	}
}
