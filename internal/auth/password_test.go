package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash not in PHC format: %s", hash)
	}

	ok, err := VerifyPassword("correct horse battery staple", hash)
	if err != nil || !ok {
		t.Errorf("verify correct password = %v, %v; want true, nil", ok, err)
	}

	ok, err = VerifyPassword("wrong", hash)
	if err != nil || ok {
		t.Errorf("verify wrong password = %v, %v; want false, nil", ok, err)
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, hash := range []string{"", "plaintext", "$argon2id$garbage", "$bcrypt$v=19$m=1,t=1,p=1$AA$AA"} {
		if ok, err := VerifyPassword("anything", hash); ok || err == nil {
			t.Errorf("VerifyPassword(%q) = %v, %v; want false with error", hash, ok, err)
		}
	}
}

func TestVerifyAdminPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !VerifyAdminPassword("s3cret", hash) {
		t.Error("hashed admin password rejected")
	}
	if VerifyAdminPassword("wrong", hash) {
		t.Error("wrong password accepted against hash")
	}

	// plaintext configuration is supported for small deployments
	if !VerifyAdminPassword("s3cret", "s3cret") {
		t.Error("plaintext admin password rejected")
	}
	if VerifyAdminPassword("wrong", "s3cret") {
		t.Error("wrong password accepted against plaintext")
	}
}
