package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

var (
	// ErrEmptyPassword is returned by Hash for an empty input.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrMalformedHash is returned when a stored hash is not a supported PHC string.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig follows the OWASP Argon2id baseline (19 MiB, t=2, p=1).
func DefaultConfig() Config {
	return Config{
		Memory:      19 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate rejects parameters below the supported floor.
func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KiB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return nil
}

// Argon2 is a stateless hasher bound to one Config.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a PHC-encoded hash with a fresh random salt. Input bytes are
// used exactly as provided, without Unicode normalisation.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	p := phc{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        salt,
	}
	p.key = p.derive(password, a.config.KeyLength)
	return p.String(), nil
}

// Verify reports whether password matches encodedHash. It returns
// ErrMalformedHash when the stored hash cannot be parsed.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	computed := p.derive(password, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

// Matches is Verify with every failure folded into false.
func (a *Argon2) Matches(password, encodedHash string) bool {
	ok, err := a.Verify(password, encodedHash)
	return err == nil && ok
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the hasher's current Config.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return a.config.Memory > p.memory ||
		a.config.Time > p.time ||
		a.config.Parallelism > p.parallelism ||
		a.config.KeyLength != uint32(len(p.key)), nil
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, keyLen)
}

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		p.memory, p.time, p.parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key))
}

func parsePHC(encoded string) (phc, error) {
	var p phc

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, fmt.Errorf("%w: unsupported version", ErrMalformedHash)
	}

	var (
		memory, time uint32
		parallelism  uint8
	)
	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &parallelism); err != nil || n != 3 {
		return p, fmt.Errorf("%w: invalid parameters", ErrMalformedHash)
	}
	if memory < minMemoryKB || time < minTimeCost || parallelism < minParallelism {
		return p, fmt.Errorf("%w: parameters below floor", ErrMalformedHash)
	}
	if parts[3] != fmt.Sprintf("m=%d,t=%d,p=%d", memory, time, parallelism) {
		return p, fmt.Errorf("%w: invalid parameters", ErrMalformedHash)
	}

	salt, err := decodeB64(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return p, fmt.Errorf("%w: invalid salt", ErrMalformedHash)
	}
	key, err := decodeB64(parts[5])
	if err != nil || len(key) == 0 {
		return p, fmt.Errorf("%w: invalid hash", ErrMalformedHash)
	}

	p.memory, p.time, p.parallelism = memory, time, parallelism
	p.salt, p.key = salt, key
	return p, nil
}

// decodeB64 accepts both unpadded (PHC canonical) and padded standard base64.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
