package password

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      minMemoryKB,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Argon2 {
	t.Helper()
	h, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}

	ok, err := h.Verify("correct horse battery staple", encoded)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
	if !h.Matches("correct horse battery staple", encoded) {
		t.Fatal("expected Matches to accept the right password")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := newTestHasher(t)
	a, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatal("expected different salts to produce different hashes")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	h := newTestHasher(t)
	encoded, err := h.Hash("right-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := h.Verify("wrong-password", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t)
	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1,x=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$short$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	} {
		if _, err := h.Verify("whatever", bad); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%q: expected ErrMalformedHash, got %v", bad, err)
		}
		if h.Matches("whatever", bad) {
			t.Fatalf("%q: Matches must be false for malformed hash", bad)
		}
	}
}

func TestHashEmptyPassword(t *testing.T) {
	h := newTestHasher(t)
	if _, err := h.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := newTestHasher(t)
	encoded, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	same, err := weak.NeedsUpgrade(encoded)
	if err != nil || same {
		t.Fatalf("same config: needs=%v err=%v", same, err)
	}

	stronger := testConfig()
	stronger.Time = 3
	strong, err := NewArgon2(stronger)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	needs, err := strong.NeedsUpgrade(encoded)
	if err != nil || !needs {
		t.Fatalf("stronger config: needs=%v err=%v", needs, err)
	}

	// older hashes remain verifiable after a parameter bump
	if !strong.Matches("upgrade-me-please", encoded) {
		t.Fatal("expected old hash to still verify")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	bad := testConfig()
	bad.SaltLength = 8
	if _, err := NewArgon2(bad); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}
