package security_test

import (
	"errors"
	"testing"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/security"
)

func fastParams() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("shawarma-lover", fastParams())
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	ok, err := security.VerifyPassword("shawarma-lover", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}

	ok, err = security.VerifyPassword("falafel-lover", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for wrong password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := security.HashPassword("", fastParams()); err == nil {
		t.Fatal("expected empty password to fail")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	if _, err := security.VerifyPassword("irrelevant", "not-a-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := security.ValidatePassword("12345"); !errors.Is(err, security.ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", err)
	}
	if err := security.ValidatePassword("      7"); !errors.Is(err, security.ErrWeakPassword) {
		t.Fatalf("expected whitespace padding to be ignored, got %v", err)
	}
	if err := security.ValidatePassword("123456"); err != nil {
		t.Fatalf("expected six characters to pass, got %v", err)
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := fastParams()
	hash, err := security.HashPassword("kofta-and-rice", weak)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if security.NeedsRehash(hash, weak) {
		t.Fatal("hash produced with current params should not need rehash")
	}

	stronger := weak
	stronger.ArgonTime = 2
	if !security.NeedsRehash(hash, stronger) {
		t.Fatal("expected rehash when time cost increases")
	}
	if !security.NeedsRehash("garbage", weak) {
		t.Fatal("expected malformed hash to need rehash")
	}
}
