package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/voxgate/voxgate/internal/models"
	"github.com/voxgate/voxgate/internal/providers/speech"
	"github.com/voxgate/voxgate/internal/utils"
)

type AvatarService interface {
	// Connect negotiates a new avatar session for the client and returns the
	// remote session description. An existing session for the same client id
	// is closed and replaced.
	Connect(ctx context.Context, p models.AvatarParams) (string, error)
	Speak(ctx context.Context, clientID, ssml string) (string, error)
	Stop(ctx context.Context, clientID string) error
	// Disconnect closes and removes the client's session; disconnecting an
	// unknown client id is a no-op.
	Disconnect(ctx context.Context, clientID string) error
}

// avatarService multiplexes per-client avatar sessions over the shared relay
// credential. Connect, Speak, and Disconnect for one client id never
// interleave; the session transport allows at most one concurrent reader.
// Stop bypasses the per-client lock so it can interrupt an in-flight Speak;
// it is write-only on the transport, which serializes writes itself.
type avatarService struct {
	creds CredentialReader
	synth speech.Synthesizer
	log   *logrus.Logger

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	sessions map[string]speech.Session
}

func NewAvatarService(creds CredentialReader, synth speech.Synthesizer, log *logrus.Logger) AvatarService {
	return &avatarService{
		creds:    creds,
		synth:    synth,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
		sessions: make(map[string]speech.Session),
	}
}

// keyLock returns the mutex serializing registry operations for one client id.
// Locks are never removed; the set is bounded by the number of distinct clients.
func (s *avatarService) keyLock(clientID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[clientID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[clientID] = l
	}
	return l
}

func (s *avatarService) session(clientID string) (speech.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[clientID]
	return sess, ok
}

func (s *avatarService) Connect(ctx context.Context, p models.AvatarParams) (string, error) {
	const op = "AvatarService.Connect"

	if p.ClientID == "" || p.LocalSDP == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "client id and local session description are required", nil)
	}

	l := s.keyLock(p.ClientID)
	l.Lock()
	defer l.Unlock()

	cred, err := s.creds.AwaitRelayCredential(ctx)
	if err != nil {
		return "", err
	}

	sess, err := s.synth.Connect(ctx, speech.SessionConfig{
		Voice:      p.Voice,
		Style:      p.Style,
		Character:  p.Character,
		Customized: p.Custom,
		LocalSDP:   p.LocalSDP,
		Relay:      *cred,
	})
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to reach synthesis service", err)
	}

	// prime the transport; the turn-start negotiation message arrives here
	res, err := sess.Speak(ctx, "")
	if err != nil {
		_ = sess.Close()
		return "", utils.E(utils.CodeUnavailable, op, "failed to initialize avatar connection", err)
	}
	if res.Canceled {
		_ = sess.Close()
		return "", utils.E(utils.CodeSynthesisCanceled, op, res.Detail, nil)
	}

	remoteSDP, err := speech.ExtractRemoteSDP(sess.TurnStart())
	if err != nil {
		_ = sess.Close()
		return "", utils.E(utils.CodeInternal, op, "could not locate remote session description", err)
	}

	s.mu.Lock()
	if old, ok := s.sessions[p.ClientID]; ok {
		_ = old.Close()
	}
	s.sessions[p.ClientID] = sess
	s.mu.Unlock()

	s.log.WithField("client_id", p.ClientID).Info("avatar connected")
	return remoteSDP, nil
}

func (s *avatarService) Speak(ctx context.Context, clientID, ssml string) (string, error) {
	const op = "AvatarService.Speak"

	// held across the wire call: the session reads the synthesis result off
	// the transport, and the transport allows one reader at a time
	l := s.keyLock(clientID)
	l.Lock()
	defer l.Unlock()

	sess, ok := s.session(clientID)
	if !ok {
		return "", utils.E(utils.CodeNotFound, op, "avatar session not found", nil)
	}

	res, err := sess.Speak(ctx, ssml)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "synthesis transport failed", err)
	}
	if res.Canceled {
		return "", utils.E(utils.CodeSynthesisCanceled, op, res.Detail, nil)
	}
	return res.ResultID, nil
}

func (s *avatarService) Stop(ctx context.Context, clientID string) error {
	const op = "AvatarService.Stop"

	// no per-client lock here: stop must not queue behind an in-flight speak
	sess, ok := s.session(clientID)
	if !ok {
		return utils.E(utils.CodeNotFound, op, "avatar session not found", nil)
	}

	if err := sess.Stop(ctx); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to stop synthesis", err)
	}
	return nil
}

func (s *avatarService) Disconnect(ctx context.Context, clientID string) error {
	l := s.keyLock(clientID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	sess, ok := s.sessions[clientID]
	delete(s.sessions, clientID)
	s.mu.Unlock()

	if ok {
		_ = sess.Close()
		s.log.WithField("client_id", clientID).Info("avatar disconnected")
	}
	return nil
}
