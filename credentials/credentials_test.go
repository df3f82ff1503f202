package credentials

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func setupKeyring(t *testing.T) {
	t.Helper()
	keyring.MockInit()
	t.Setenv(EnvAppPassword, "")
}

func TestAppPassword_Env(t *testing.T) {
	setupKeyring(t)
	t.Setenv(EnvAppPassword, "from-env")

	pw, src, err := NewStore().AppPassword("")
	if err != nil {
		t.Fatalf("AppPassword() error = %v", err)
	}
	if pw != "from-env" || src != SourceEnv {
		t.Errorf("AppPassword() = %q, %q; want from-env, environment", pw, src)
	}
}

func TestAppPassword_Keyring(t *testing.T) {
	setupKeyring(t)
	s := NewStore()

	if err := s.Save("bot.test", "abcd-efgh-ijkl-mnop"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	pw, src, err := s.AppPassword("bot.test")
	if err != nil {
		t.Fatalf("AppPassword() error = %v", err)
	}
	if pw != "abcd-efgh-ijkl-mnop" {
		t.Errorf("password = %q", pw)
	}
	if src != SourceKeyring {
		t.Errorf("source = %q, want keyring", src)
	}
}

func TestAppPassword_Missing(t *testing.T) {
	setupKeyring(t)

	_, _, err := NewStore().AppPassword("nobody.test")
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("AppPassword() error = %v, want ErrNoCredentials", err)
	}

	_, _, err = NewStore().AppPassword("")
	if !errors.Is(err, ErrNoIdentifier) {
		t.Errorf("AppPassword(\"\") error = %v, want ErrNoIdentifier", err)
	}
}

func TestDelete(t *testing.T) {
	setupKeyring(t)
	s := NewStoreWithService("skyfeed-test")

	if err := s.Save("bot.test", "secret"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete("bot.test"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, _, err := s.AppPassword("bot.test"); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("after Delete, error = %v, want ErrNoCredentials", err)
	}

	// Deleting again is a no-op.
	if err := s.Delete("bot.test"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestSave_Validation(t *testing.T) {
	setupKeyring(t)
	s := NewStore()
	if err := s.Save("", "pw"); !errors.Is(err, ErrNoIdentifier) {
		t.Errorf("Save with empty identifier error = %v", err)
	}
	if err := s.Save("bot.test", ""); err == nil {
		t.Error("Save with empty password should fail")
	}
}

func TestKeyringError(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus not running"))
	t.Cleanup(keyring.MockInit)
	t.Setenv(EnvAppPassword, "")

	_, _, err := NewStore().AppPassword("bot.test")
	if !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("AppPassword() error = %v, want ErrKeyringUnavailable", err)
	}
}

func TestDescription(t *testing.T) {
	if Description() == "" {
		t.Error("Description() is empty")
	}
}

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "*****"},
		{"abcd-efgh-ijkl-mnop", "abcd***********mnop"},
	}
	for _, tt := range tests {
		if got := MaskCredential(tt.in); got != tt.want {
			t.Errorf("MaskCredential(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
