package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the validity window of an issued token.
const DefaultTTL = 24 * time.Hour

// minHMACKeyLength rejects trivially short shared secrets.
const minHMACKeyLength = 32

var (
	// ErrMalformed is returned for tokens that cannot be decoded or lack required claims.
	ErrMalformed = errors.New("token malformed")
	// ErrSignatureInvalid is returned when the signature or algorithm does not match.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired is returned when the token is past its exp claim.
	ErrExpired = errors.New("token expired")
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a process-wide shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"
)

// Config holds key material and validation settings.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for hs256, or the Ed25519 private key
	// (raw or PEM) for ed25519.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	KeyID      string
	// VerifyKeys maps kid to an additional verification key, for rotation.
	VerifyKeys map[string][]byte
}

// Claims is the token payload.
type Claims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// Manager issues and verifies tokens. It is safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACKeyLength {
			return nil, fmt.Errorf("hs256 requires a secret of at least %d bytes", minHMACKeyLength)
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg, now: time.Now}, nil
}

// TTL reports the configured validity window.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue signs a token for the (userID, sessionID) pair.
func (m *Manager) Issue(userID, sessionID string) (string, error) {
	if userID == "" || sessionID == "" {
		return "", errors.New("user id and session id are required")
	}

	now := m.now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method(), claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signKey, err := m.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(signKey)
}

// Verify checks signature and expiry and returns the embedded claims.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing userId or sessionId", ErrMalformed)
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return m.verifyKeyFromBytes(key)
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return m.verifyKey()
}

// classify maps parser errors onto the package's three failure kinds. A key
// that cannot be selected is reported as a signature failure.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (m *Manager) signKey() (any, error) {
	if m.config.SigningMethod == MethodEd25519 {
		return parseEdPrivateKey(m.config.PrivateKey)
	}
	return m.config.PrivateKey, nil
}

func (m *Manager) verifyKey() (any, error) {
	if m.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(m.config.PublicKey)
	}
	return m.config.PrivateKey, nil
}

func (m *Manager) verifyKeyFromBytes(key []byte) (any, error) {
	if m.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(key)
	}
	return key, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
