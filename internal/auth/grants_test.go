package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestStaticGrants(t *testing.T) {
	g := NewStaticGrants("Admin@Example.com")

	cases := []struct {
		email string
		want  bool
	}{
		{"admin@example.com", true},
		{"ADMIN@EXAMPLE.COM", true},
		{" admin@example.com ", true},
		{"other@example.com", false},
		{"", false},
	}
	for _, tc := range cases {
		ok, err := g.HasAdminGrant(context.Background(), tc.email)
		if err != nil {
			t.Fatalf("HasAdminGrant(%q): %v", tc.email, err)
		}
		if ok != tc.want {
			t.Errorf("HasAdminGrant(%q) = %v, want %v", tc.email, ok, tc.want)
		}
	}
}

func TestCredentialsCheck(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Test@123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	creds := Credentials{Email: "test@gmail.com", PasswordHash: string(hash)}

	if err := creds.Check("test@gmail.com", "Test@123"); err != nil {
		t.Errorf("valid credentials rejected: %v", err)
	}
	if err := creds.Check("TEST@GMAIL.COM", "Test@123"); err != nil {
		t.Errorf("email match should be case-insensitive: %v", err)
	}
	if err := creds.Check("test@gmail.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if err := creds.Check("other@gmail.com", "Test@123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}
