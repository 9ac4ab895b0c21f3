package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/voxgate/voxgate/internal/models"
	"github.com/voxgate/voxgate/internal/utils"
)

const sessionTTL = 24 * time.Hour

// ConversationRepository stores conversation sessions in Redis so several
// gateway replicas can serve the same browser session. Entries expire with
// the browser session's useful lifetime.
type ConversationRepository struct {
	rdb *goredis.Client
}

func NewConversationRepository(rdb *goredis.Client) *ConversationRepository {
	return &ConversationRepository{rdb: rdb}
}

func key(browserSessionID string) string {
	return "conversation:" + browserSessionID
}

func (r *ConversationRepository) Get(ctx context.Context, browserSessionID string) (*models.ConversationSession, error) {
	s, err := r.rdb.Get(ctx, key(browserSessionID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var out models.ConversationSession
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		// data corrupt: treat as miss by deleting
		_ = r.rdb.Del(ctx, key(browserSessionID)).Err()
		return nil, utils.ErrNotFound
	}
	return &out, nil
}

func (r *ConversationRepository) Put(ctx context.Context, browserSessionID string, s *models.ConversationSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, key(browserSessionID), b, sessionTTL).Err()
}

func (r *ConversationRepository) Delete(ctx context.Context, browserSessionID string) error {
	return r.rdb.Del(ctx, key(browserSessionID)).Err()
}
