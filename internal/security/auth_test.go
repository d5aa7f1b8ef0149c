package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenValidator(t *testing.T) {
	v := NewTokenValidator("s3cret")
	good, err := v.GenerateToken("scheduler", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	expired, err := (&TokenValidator{secret: []byte("s3cret"), now: func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}}).GenerateToken("scheduler", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	otherSecret, err := NewTokenValidator("other").GenerateToken("scheduler", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "x"}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		token   string
		wantSub string
		wantErr bool
	}{
		{"valid", good, "scheduler", false},
		{"empty", "", "", true},
		{"garbage", "not.a.token", "", true},
		{"expired", expired, "", true},
		{"wrong secret", otherSecret, "", true},
		{"wrong algorithm", hs512, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := v.ValidateToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidToken) {
				t.Errorf("error %v does not wrap ErrInvalidToken", err)
			}
			if sub != tt.wantSub {
				t.Errorf("sub = %q, want %q", sub, tt.wantSub)
			}
		})
	}
}

func TestTokenValidator_Disabled(t *testing.T) {
	v := NewTokenValidator("")
	if v.Enabled() {
		t.Fatal("empty secret must disable validation")
	}
	if _, err := v.ValidateToken(""); err != nil {
		t.Errorf("disabled validator rejected request: %v", err)
	}
	if _, err := v.GenerateToken("x", time.Minute); err == nil {
		t.Error("expected GenerateToken to fail without a secret")
	}
}
