package password

import (
	"errors"
	"strings"
	"testing"
)

// cheap keeps the test suite fast while staying above the parameter floor.
func cheap() Argon2Params {
	return Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestArgon2HashAndVerify(t *testing.T) {
	h, err := NewArgon2(cheap())
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}

	encoded, err := h.Hash("Sup3r-secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if strings.Contains(encoded, "Sup3r-secret") {
		t.Fatal("hash leaks plaintext")
	}

	ok, err := h.Verify("Sup3r-secret", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}
	ok, err = h.Verify("sup3r-secret", encoded)
	if err != nil || ok {
		t.Fatalf("Verify(wrong) = %v, %v", ok, err)
	}
}

func TestArgon2SaltsDiffer(t *testing.T) {
	h, _ := NewArgon2(cheap())
	a, _ := h.Hash("same-password1")
	b, _ := h.Hash("same-password1")
	if a == b {
		t.Fatal("expected distinct salts")
	}
}

func TestArgon2NeedsRehash(t *testing.T) {
	old, _ := NewArgon2(cheap())
	encoded, err := old.Hash("upgrade-me-1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	stronger := cheap()
	stronger.Time = 2
	current, _ := NewArgon2(stronger)

	if !current.NeedsRehash(encoded) {
		t.Fatal("expected weaker hash to need rehash")
	}
	if old.NeedsRehash(encoded) {
		t.Fatal("same params should not need rehash")
	}
	if !current.NeedsRehash("garbage") {
		t.Fatal("undecodable hash should need rehash")
	}
}

func TestArgon2RejectsMalformed(t *testing.T) {
	h, _ := NewArgon2(cheap())
	cases := []string{
		"",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=10,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
	}
	for _, tc := range cases {
		if _, err := h.Verify("pw", tc); err == nil {
			t.Fatalf("expected error for %q", tc)
		}
	}
}

func TestArgon2ParamsValidate(t *testing.T) {
	if err := DefaultArgon2Params().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
	p := cheap()
	p.SaltLength = 8
	if _, err := NewArgon2(p); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}

func TestChainVerifiesBcryptAndFlagsRehash(t *testing.T) {
	primary, _ := NewArgon2(cheap())
	chain := NewChain(primary)

	legacy, err := NewBcrypt(4).Hash("legacy-pass1")
	if err != nil {
		t.Fatalf("bcrypt Hash: %v", err)
	}

	ok, err := chain.Verify("legacy-pass1", legacy)
	if err != nil || !ok {
		t.Fatalf("Verify(bcrypt) = %v, %v", ok, err)
	}
	if !chain.NeedsRehash(legacy) {
		t.Fatal("bcrypt hash should be upgraded")
	}

	fresh, _ := chain.Hash("legacy-pass1")
	if !strings.HasPrefix(fresh, argon2idPrefix) {
		t.Fatalf("chain should hash with argon2id, got %q", fresh)
	}
	if chain.NeedsRehash(fresh) {
		t.Fatal("fresh argon2id hash should not need rehash")
	}
}

func TestBcryptVerify(t *testing.T) {
	b := NewBcrypt(4)
	encoded, err := b.Hash("another-pass2")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if ok, _ := b.Verify("another-pass2", encoded); !ok {
		t.Fatal("expected match")
	}
	if ok, _ := b.Verify("nope", encoded); ok {
		t.Fatal("expected mismatch")
	}
	if _, err := b.Verify("x", "not-bcrypt"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}
