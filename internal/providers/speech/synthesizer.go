package speech

import (
	"context"

	"github.com/voxgate/voxgate/internal/models"
)

// SessionConfig binds one avatar session to a voice, an avatar look, the
// relay servers, and the caller's local WebRTC session description.
type SessionConfig struct {
	Voice      string
	Style      string
	Character  string
	Customized bool
	LocalSDP   string
	Relay      models.RelayCredential
}

// SpeakResult is the outcome of one synthesis request.
type SpeakResult struct {
	ResultID string
	// Canceled is set when the service rejected the request; Detail carries
	// the engine-provided reason.
	Canceled bool
	Detail   string
}

// Session is one live connection to the synthesis service.
type Session interface {
	// Speak synthesizes the given SSML. An empty string primes the transport
	// without producing audio.
	Speak(ctx context.Context, ssml string) (SpeakResult, error)
	// Stop halts in-flight synthesis without closing the session.
	Stop(ctx context.Context) error
	// TurnStart returns the raw session-negotiation message captured during
	// the priming turn.
	TurnStart() string
	Close() error
}

// Synthesizer dials synthesis sessions.
type Synthesizer interface {
	Connect(ctx context.Context, cfg SessionConfig) (Session, error)
}
