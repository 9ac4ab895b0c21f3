package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/voxgate/voxgate/internal/models"
	"github.com/voxgate/voxgate/internal/providers/directline"
	"github.com/voxgate/voxgate/internal/utils"
)

// ConversationStore persists the per-browser-session conversation state.
type ConversationStore interface {
	Get(ctx context.Context, browserSessionID string) (*models.ConversationSession, error)
	Put(ctx context.Context, browserSessionID string, s *models.ConversationSession) error
	Delete(ctx context.Context, browserSessionID string) error
}

type ConversationService interface {
	// Ensure returns the existing conversation session for the browser
	// session, bootstrapping a new one when absent.
	Ensure(ctx context.Context, browserSessionID string) (*models.ConversationSession, error)
	// Recreate force-replaces the session, used after a failed send when the
	// token has likely expired or the conversation was evicted server side.
	Recreate(ctx context.Context, browserSessionID string) (*models.ConversationSession, error)
	// UpdateWatermark advances the delivery watermark; it never moves backwards.
	UpdateWatermark(ctx context.Context, browserSessionID string, watermark int) error
}

type conversationService struct {
	bot   directline.Provider
	store ConversationStore
	log   *logrus.Logger
}

func NewConversationService(bot directline.Provider, store ConversationStore, log *logrus.Logger) ConversationService {
	return &conversationService{bot: bot, store: store, log: log}
}

func (s *conversationService) Ensure(ctx context.Context, browserSessionID string) (*models.ConversationSession, error) {
	const op = "ConversationService.Ensure"

	if browserSessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "browser session id is required", nil)
	}

	sess, err := s.store.Get(ctx, browserSessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversation session", err)
	}
	return s.create(ctx, op, browserSessionID)
}

func (s *conversationService) Recreate(ctx context.Context, browserSessionID string) (*models.ConversationSession, error) {
	const op = "ConversationService.Recreate"

	if browserSessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "browser session id is required", nil)
	}
	if err := s.store.Delete(ctx, browserSessionID); err != nil {
		s.log.WithError(err).WithField("browser_session_id", browserSessionID).
			Warn("failed to drop stale conversation session")
	}
	return s.create(ctx, op, browserSessionID)
}

func (s *conversationService) create(ctx context.Context, op, browserSessionID string) (*models.ConversationSession, error) {
	token, err := s.bot.GenerateToken(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to start conversation", err)
	}
	conversationID, err := s.bot.StartConversation(ctx, token)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to start conversation", err)
	}

	sess := &models.ConversationSession{
		ConversationID: conversationID,
		Token:          token,
		Watermark:      0,
	}
	if err := s.store.Put(ctx, browserSessionID, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store conversation session", err)
	}

	s.log.WithFields(logrus.Fields{
		"browser_session_id": browserSessionID,
		"conversation_id":    conversationID,
	}).Info("conversation started")
	return sess, nil
}

func (s *conversationService) UpdateWatermark(ctx context.Context, browserSessionID string, watermark int) error {
	const op = "ConversationService.UpdateWatermark"

	sess, err := s.store.Get(ctx, browserSessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "conversation session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load conversation session", err)
	}
	if watermark <= sess.Watermark {
		return nil
	}

	sess.Watermark = watermark
	if err := s.store.Put(ctx, browserSessionID, sess); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to store conversation session", err)
	}
	return nil
}
