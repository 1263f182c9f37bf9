package gatekeeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/gatekeeper/internal"
)

func withEmailVerification(requireForLogin bool) func(*Config) {
	return func(cfg *Config) {
		cfg.EmailVerification.Enabled = true
		cfg.EmailVerification.RequireForLogin = requireForLogin
		cfg.EmailVerification.MaxAttempts = 2
	}
}

func TestEmailVerificationRoundTrip(t *testing.T) {
	te := newTestEngine(t, withEmailVerification(true))
	ctx := context.Background()
	u := te.register(t, "erin@example.com")
	assert.False(t, u.IsEmailVerified)

	_, err := te.Login(ctx, "erin@example.com", testPassword)
	require.ErrorIs(t, err, ErrEmailUnverified)

	token, err := te.RequestEmailVerification(ctx, " Erin@Example.com ")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	res, err := te.CompleteEmailVerification(ctx, token)
	require.NoError(t, err)
	assert.True(t, res.User.IsEmailVerified)

	id, err := te.ValidateSession(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)

	_, err = te.CompleteEmailVerification(ctx, token)
	assert.ErrorIs(t, err, ErrEmailVerificationInvalid, "tokens are single use")

	te.login(t, "erin@example.com")

	snap := te.MetricsSnapshot()
	assert.EqualValues(t, 1, snap.Counters[MetricEmailVerificationRequest])
	assert.EqualValues(t, 1, snap.Counters[MetricEmailVerificationSuccess])
	assert.EqualValues(t, 1, snap.Counters[MetricEmailVerificationFailure])
}

func TestEmailVerificationUnknownEmailGetsUnusableToken(t *testing.T) {
	te := newTestEngine(t, withEmailVerification(false))
	ctx := context.Background()

	token, err := te.RequestEmailVerification(ctx, "ghost@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = te.CompleteEmailVerification(ctx, token)
	assert.ErrorIs(t, err, ErrEmailVerificationInvalid)
}

func TestEmailVerificationWrongSecretBurnsChallenge(t *testing.T) {
	te := newTestEngine(t, withEmailVerification(false))
	ctx := context.Background()
	te.register(t, "frank@example.com")

	token, err := te.RequestEmailVerification(ctx, "frank@example.com")
	require.NoError(t, err)

	challengeID, _, err := internal.DecodeChallenge(token)
	require.NoError(t, err)
	wrong, err := internal.NewChallengeSecret()
	require.NoError(t, err)
	forged, err := internal.EncodeChallenge(challengeID, wrong)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = te.CompleteEmailVerification(ctx, forged)
		assert.ErrorIs(t, err, ErrEmailVerificationInvalid)
	}
	_, err = te.CompleteEmailVerification(ctx, token)
	assert.ErrorIs(t, err, ErrEmailVerificationInvalid)
}

func TestEmailVerificationExpires(t *testing.T) {
	te := newTestEngine(t, withEmailVerification(false))
	ctx := context.Background()
	te.register(t, "gina@example.com")

	token, err := te.RequestEmailVerification(ctx, "gina@example.com")
	require.NoError(t, err)
	te.mr.FastForward(16 * time.Minute)

	_, err = te.CompleteEmailVerification(ctx, token)
	assert.ErrorIs(t, err, ErrEmailVerificationInvalid)
}

func TestEmailVerificationDisabled(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	_, err := te.RequestEmailVerification(ctx, "anyone@example.com")
	assert.ErrorIs(t, err, ErrEmailVerificationDisabled)
	_, err = te.CompleteEmailVerification(ctx, "whatever")
	assert.ErrorIs(t, err, ErrEmailVerificationDisabled)
}

func TestEmailVerificationMalformedToken(t *testing.T) {
	te := newTestEngine(t, withEmailVerification(false))
	_, err := te.CompleteEmailVerification(context.Background(), "%%%")
	assert.ErrorIs(t, err, ErrEmailVerificationInvalid)
}
