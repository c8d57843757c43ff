package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("my-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if hash == "my-password" {
		t.Fatal("hash must not equal the plain password")
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash %q does not look like bcrypt", hash)
	}

	if !h.Verify(hash, "my-password") {
		t.Error("correct password should verify")
	}
	if h.Verify(hash, "wrong-password") {
		t.Error("wrong password should not verify")
	}
}

func TestNewPasswordHasher_InvalidCostFallsBack(t *testing.T) {
	h := NewPasswordHasher(999)

	hash, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("Hash failed with fallback cost: %v", err)
	}
	if !h.Verify(hash, "pw") {
		t.Error("hash with fallback cost should verify")
	}
}
