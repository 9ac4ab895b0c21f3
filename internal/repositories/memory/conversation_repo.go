package memory

import (
	"context"
	"sync"

	"github.com/voxgate/voxgate/internal/models"
	"github.com/voxgate/voxgate/internal/utils"
)

// ConversationRepository keeps conversation sessions in process memory. It is
// the default store for a single gateway replica; use the redis repository
// when sessions must survive the process or be shared across replicas.
type ConversationRepository struct {
	mu       sync.RWMutex
	sessions map[string]models.ConversationSession
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{sessions: make(map[string]models.ConversationSession)}
}

func (r *ConversationRepository) Get(ctx context.Context, browserSessionID string) (*models.ConversationSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[browserSessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	out := s // copy so callers never share the stored value
	return &out, nil
}

func (r *ConversationRepository) Put(ctx context.Context, browserSessionID string, s *models.ConversationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[browserSessionID] = *s
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, browserSessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, browserSessionID)
	return nil
}
