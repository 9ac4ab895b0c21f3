package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voxgate/voxgate/internal/clock"
	"github.com/voxgate/voxgate/internal/models"
	"github.com/voxgate/voxgate/internal/providers/speech"
	"github.com/voxgate/voxgate/internal/utils"
)

// CredentialReader is the read side of the credential refresher. Reads are
// non-blocking and never trigger a refresh themselves.
type CredentialReader interface {
	CurrentSpeechToken() (string, bool)
	CurrentRelayCredential() (*models.RelayCredential, bool)
	// AwaitRelayCredential polls with bounded retries for a published relay
	// credential and fails UNAVAILABLE when none appears.
	AwaitRelayCredential(ctx context.Context) (*models.RelayCredential, error)
}

// CredentialRefresher owns two independent background refresh loops: the
// short-lived speech token and the long-lived relay credential. Each value is
// published atomically; readers see either the previous value or the new one,
// never a partial write. Refresh failures are logged and never surfaced to
// request handlers.
type CredentialRefresher struct {
	Tokens speech.TokenSource
	Logger *logrus.Logger
	Sleep  clock.Sleeper

	SpeechInterval time.Duration
	RelayInterval  time.Duration
	RelayRetry     time.Duration
	RelayWaitStep  time.Duration
	RelayWaitMax   int

	speechToken atomic.Pointer[string]
	relayCred   atomic.Pointer[models.RelayCredential]
}

// Start launches both refresh loops. They stop when ctx is canceled.
func (r *CredentialRefresher) Start(ctx context.Context) error {
	if r.Tokens == nil {
		return errors.New("CredentialRefresher missing dependency: Tokens must be set")
	}
	if r.Logger == nil {
		r.Logger = logrus.New()
	}
	if r.Sleep == nil {
		r.Sleep = clock.SystemSleeper{}
	}
	if r.SpeechInterval <= 0 {
		r.SpeechInterval = 9 * time.Minute
	}
	if r.RelayInterval <= 0 {
		r.RelayInterval = 24 * time.Hour
	}
	if r.RelayRetry <= 0 {
		r.RelayRetry = time.Minute
	}

	go r.runSpeechLoop(ctx)
	go r.runRelayLoop(ctx)
	return nil
}

func (r *CredentialRefresher) runSpeechLoop(ctx context.Context) {
	for {
		tok, err := r.Tokens.IssueSpeechToken(ctx)
		if err != nil {
			// keep serving the previous token until the next cycle
			r.Logger.WithError(err).Error("speech token refresh failed")
		} else {
			r.speechToken.Store(&tok)
			r.Logger.Debug("speech token refreshed")
		}

		if r.Sleep.Sleep(ctx, r.SpeechInterval) != nil {
			return
		}
	}
}

func (r *CredentialRefresher) runRelayLoop(ctx context.Context) {
	published := false
	for {
		if r.refreshRelay(ctx) {
			published = true
		}

		// fast retry only until the first successful publish; after that the
		// long cadence holds even across failures
		wait := r.RelayInterval
		if !published {
			wait = r.RelayRetry
		}
		if r.Sleep.Sleep(ctx, wait) != nil {
			return
		}
	}
}

func (r *CredentialRefresher) refreshRelay(ctx context.Context) bool {
	raw, err := r.Tokens.IssueRelayCredential(ctx)
	if err != nil {
		r.Logger.WithError(err).Error("relay credential refresh failed")
		r.relayCred.Store(nil)
		return false
	}

	var cred models.RelayCredential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		r.Logger.WithError(err).Error("relay credential payload is not valid JSON, discarding")
		r.relayCred.Store(nil)
		return false
	}
	if !cred.Valid() {
		r.Logger.Error("relay credential payload incomplete, discarding")
		r.relayCred.Store(nil)
		return false
	}

	r.relayCred.Store(&cred)
	r.Logger.Debug("relay credential refreshed")
	return true
}

func (r *CredentialRefresher) CurrentSpeechToken() (string, bool) {
	if p := r.speechToken.Load(); p != nil {
		return *p, true
	}
	return "", false
}

func (r *CredentialRefresher) CurrentRelayCredential() (*models.RelayCredential, bool) {
	if p := r.relayCred.Load(); p != nil {
		return p, true
	}
	return nil, false
}

func (r *CredentialRefresher) AwaitRelayCredential(ctx context.Context) (*models.RelayCredential, error) {
	const op = "CredentialRefresher.AwaitRelayCredential"

	step := r.RelayWaitStep
	if step <= 0 {
		step = 500 * time.Millisecond
	}
	max := r.RelayWaitMax
	if max <= 0 {
		max = 5
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = clock.SystemSleeper{}
	}

	if cred, ok := r.CurrentRelayCredential(); ok {
		return cred, nil
	}
	for i := 0; i < max; i++ {
		if err := sleep.Sleep(ctx, step); err != nil {
			break
		}
		if cred, ok := r.CurrentRelayCredential(); ok {
			return cred, nil
		}
	}
	return nil, utils.E(utils.CodeUnavailable, op, "relay credential not available", nil)
}
