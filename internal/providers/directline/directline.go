package directline

import (
	"context"

	"github.com/voxgate/voxgate/internal/models"
)

// Provider is the bot activity-protocol surface the gateway depends on.
type Provider interface {
	// GenerateToken exchanges the channel secret for a scoped bearer token.
	GenerateToken(ctx context.Context) (string, error)
	// StartConversation opens a conversation and returns its id.
	StartConversation(ctx context.Context, token string) (string, error)
	// PostActivity appends an activity and returns the id it was assigned.
	PostActivity(ctx context.Context, conversationID, token string, act models.Activity) (string, error)
	// ListActivities returns the full activity stream, oldest first.
	ListActivities(ctx context.Context, conversationID, token string) ([]models.Activity, error)
}
