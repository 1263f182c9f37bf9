package gatekeeper

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/gatekeeper/identity"
	"github.com/MrEthical07/gatekeeper/internal"
	"github.com/MrEthical07/gatekeeper/internal/flows"
	"github.com/MrEthical07/gatekeeper/internal/stores"
)

// RequestEmailVerification creates a verification challenge for email and
// returns the opaque token to hand to the mail collaborator. Unknown,
// inactive and already verified addresses receive a token that can never be
// completed, so the response does not reveal whether an account exists.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	return e.flow.RequestEmailVerification(ctx, identity.NormalizeEmail(email))
}

// CompleteEmailVerification consumes the challenge token, marks the email as
// verified and opens a session. A token is single use; repeated wrong
// secrets for the same challenge burn it after MaxAttempts.
func (e *Engine) CompleteEmailVerification(ctx context.Context, token string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.ConfirmEmailVerification(ctx, token)
	if err != nil {
		return nil, err
	}
	return loginResult(res.User, res.Session), nil
}

func generateChallenge() (flows.Challenge, error) {
	id, err := internal.NewSessionID()
	if err != nil {
		return flows.Challenge{}, err
	}
	secret, err := internal.NewChallengeSecret()
	if err != nil {
		return flows.Challenge{}, err
	}
	token, err := internal.EncodeChallenge(id.String(), secret)
	if err != nil {
		return flows.Challenge{}, err
	}
	return flows.Challenge{
		ID:         id.String(),
		Token:      token,
		SecretHash: internal.HashChallengeSecret(secret),
	}, nil
}

func parseChallenge(token string) (string, [32]byte, error) {
	id, secret, err := internal.DecodeChallenge(token)
	if err != nil {
		return "", [32]byte{}, err
	}
	return id, internal.HashChallengeSecret(secret), nil
}

func (e *Engine) saveChallenge(ctx context.Context, challengeID, userID string, secretHash [32]byte, ttl time.Duration) error {
	if e.verificationStore == nil {
		return ErrEngineNotReady
	}
	return e.verificationStore.Put(ctx, challengeID, stores.Challenge{UserID: userID, SecretHash: secretHash}, ttl)
}

func (e *Engine) consumeChallenge(ctx context.Context, challengeID string, secretHash [32]byte, maxAttempts int) (string, error) {
	if e.verificationStore == nil {
		return "", ErrEngineNotReady
	}
	return e.verificationStore.Consume(ctx, challengeID, secretHash, maxAttempts)
}

func mapVerificationStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEngineNotReady):
		return err
	case errors.Is(err, stores.ErrChallengeNotFound),
		errors.Is(err, stores.ErrChallengeSecretMismatch),
		errors.Is(err, stores.ErrChallengeAttemptsExceeded):
		return ErrEmailVerificationInvalid
	default:
		return ErrEmailVerificationUnavailable
	}
}
