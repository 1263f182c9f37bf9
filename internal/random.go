package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// SessionID is a 128-bit random identifier.
type SessionID [16]byte

const (
	challengeSecretSize = 32
	challengeRawSize    = len(SessionID{}) + challengeSecretSize
)

// ChallengeSecret is the secret half of a verification challenge.
type ChallengeSecret [challengeSecretSize]byte

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewSessionIDString returns a fresh encoded session id.
func NewSessionIDString() (string, error) {
	sid, err := NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

func NewChallengeSecret() (ChallengeSecret, error) {
	var secret ChallengeSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashChallengeSecret(secret ChallengeSecret) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeChallenge packs a challenge id and its secret into one opaque token.
func EncodeChallenge(challengeID string, secret ChallengeSecret) (string, error) {
	cid, err := ParseSessionID(challengeID)
	if err != nil {
		return "", err
	}

	var raw [challengeRawSize]byte
	copy(raw[:len(cid)], cid[:])
	copy(raw[len(cid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeChallenge(token string) (string, ChallengeSecret, error) {
	var secret ChallengeSecret

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != challengeRawSize {
		return "", secret, errors.New("invalid challenge size")
	}

	var cid SessionID
	copy(cid[:], raw[:len(cid)])
	copy(secret[:], raw[len(cid):])

	return cid.String(), secret, nil
}
