package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voxgate/voxgate/internal/clock"
	"github.com/voxgate/voxgate/internal/models"
	"github.com/voxgate/voxgate/internal/providers/directline"
	"github.com/voxgate/voxgate/internal/utils"
)

const (
	// EmptyReplyText stands in for a correlated reply that carried no text.
	EmptyReplyText = "I received your message but have no text response."
	// NoReplyText stands in when polling gave up before a reply appeared; the
	// bot may still be processing.
	NoReplyText = "I received your message and am processing it, but no text response was generated."
)

type ChatService interface {
	// Send posts the message on the browser session's conversation and blocks
	// until the bot's causally linked reply is found, or polling is exhausted
	// (NO_REPLY).
	Send(ctx context.Context, browserSessionID, message string) (string, error)
}

type chatService struct {
	bot   directline.Provider
	convs ConversationService
	sleep clock.Sleeper
	log   *logrus.Logger

	maxAttempts   int
	firstMissWait time.Duration
	attemptWait   time.Duration
}

func NewChatService(bot directline.Provider, convs ConversationService, sleep clock.Sleeper, log *logrus.Logger) ChatService {
	return &chatService{
		bot:           bot,
		convs:         convs,
		sleep:         sleep,
		log:           log,
		maxAttempts:   5,
		firstMissWait: 5 * time.Second,
		attemptWait:   2 * time.Second,
	}
}

func (s *chatService) Send(ctx context.Context, browserSessionID, message string) (string, error) {
	const op = "ChatService.Send"

	if strings.TrimSpace(message) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "no message provided", nil)
	}

	sess, err := s.convs.Ensure(ctx, browserSessionID)
	if err != nil {
		return "", err
	}

	activityID, err := s.post(ctx, sess, message)
	if err != nil {
		// token likely expired or conversation evicted server side; replace
		// the session once and retry the post exactly once
		s.log.WithError(err).WithField("browser_session_id", browserSessionID).
			Warn("post failed, recreating conversation")
		sess, err = s.convs.Recreate(ctx, browserSessionID)
		if err != nil {
			return "", err
		}
		activityID, err = s.post(ctx, sess, message)
		if err != nil {
			return "", utils.E(utils.CodeSendFailed, op, "failed to send message", err)
		}
	}

	log := s.log.WithFields(logrus.Fields{
		"conversation_id": sess.ConversationID,
		"activity_id":     activityID,
	})

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		reply, seen, err := s.findReply(ctx, sess, activityID, attempt == 0)
		if err != nil {
			log.WithError(err).Warn("activity poll failed")
		} else if reply != nil {
			if err := s.convs.UpdateWatermark(ctx, browserSessionID, seen); err != nil {
				log.WithError(err).Warn("failed to advance watermark")
			}
			if strings.TrimSpace(reply.Text) == "" {
				return EmptyReplyText, nil
			}
			return reply.Text, nil
		}

		if attempt < s.maxAttempts-1 {
			if err := s.sleep.Sleep(ctx, s.attemptWait); err != nil {
				return "", utils.E(utils.CodeInternal, op, "canceled while waiting for reply", err)
			}
		}
	}
	return "", utils.E(utils.CodeNoReply, op, "no reply from bot after retries", nil)
}

func (s *chatService) post(ctx context.Context, sess *models.ConversationSession, message string) (string, error) {
	return s.bot.PostActivity(ctx, sess.ConversationID, sess.Token, models.Activity{
		Type: models.ActivityTypeMessage,
		From: models.ActivityFrom{ID: "user", Name: "Web User"},
		Text: message,
	})
}

// findReply runs one polling attempt over the full activity list. On the
// first attempt a miss gets one extra wait-and-refetch, since plan-style bots
// can take several seconds before the textual reply lands.
func (s *chatService) findReply(ctx context.Context, sess *models.ConversationSession, activityID string, firstAttempt bool) (*models.Activity, int, error) {
	activities, err := s.bot.ListActivities(ctx, sess.ConversationID, sess.Token)
	if err != nil {
		return nil, 0, err
	}
	if reply := matchReply(activities, activityID); reply != nil {
		return reply, len(activities), nil
	}

	if firstAttempt {
		if err := s.sleep.Sleep(ctx, s.firstMissWait); err != nil {
			return nil, 0, err
		}
		activities, err = s.bot.ListActivities(ctx, sess.ConversationID, sess.Token)
		if err != nil {
			return nil, 0, err
		}
		if reply := matchReply(activities, activityID); reply != nil {
			return reply, len(activities), nil
		}
	}
	return nil, 0, nil
}

// matchReply correlates the bot's reply to the posted activity id. The posted
// activity itself must be visible in the list before any reply is accepted.
// Preference order: a textual message-type reply, then any textual reply, then
// a textless message-type reply. When several replies target the same id the
// first in list order wins, which is non-deterministic if the bot emits
// parallel replies.
func matchReply(activities []models.Activity, activityID string) *models.Activity {
	posted := false
	var primary, textual, textless *models.Activity
	for i := range activities {
		a := &activities[i]
		if a.ID == activityID {
			posted = true
			continue
		}
		if a.ReplyToID != activityID || a.From.Role != models.RoleBot {
			continue
		}
		if strings.TrimSpace(a.Text) != "" {
			if primary == nil && a.Type == models.ActivityTypeMessage {
				primary = a
			}
			if textual == nil {
				textual = a
			}
		} else if textless == nil && a.Type == models.ActivityTypeMessage {
			textless = a
		}
	}

	if !posted {
		return nil
	}
	if primary != nil {
		return primary
	}
	if textual != nil {
		return textual
	}
	return textless
}
