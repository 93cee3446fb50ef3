package passwords

import (
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(fastConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := h.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestHash_SaltsDiffer(t *testing.T) {
	h := newTestHasher(t)

	a, _ := h.Hash("same-password")
	b, _ := h.Hash("same-password")
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := h.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestVerify_AcceptsHashesFromOtherCosts(t *testing.T) {
	strong, err := NewHasher(Config{Memory: 16 * 1024, Time: 2, Parallelism: 2, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	hash, _ := strong.Hash("portable-password")

	ok, err := newTestHasher(t).Verify("portable-password", hash)
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v", ok, err)
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	h := newTestHasher(t)

	for _, bad := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=10,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	} {
		if _, err := h.Verify("x", bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDummyVerify(t *testing.T) {
	h := newTestHasher(t)

	h.DummyVerify("anything")
	if h.dummyHash == "" {
		t.Fatal("dummy hash not initialised")
	}
	first := h.dummyHash
	h.DummyVerify("again")
	if h.dummyHash != first {
		t.Fatal("dummy hash must be computed once")
	}
}

func TestNewHasher_RejectsWeakConfig(t *testing.T) {
	tests := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for _, cfg := range tests {
		if _, err := NewHasher(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}

	if _, err := NewHasher(DefaultConfig()); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}
