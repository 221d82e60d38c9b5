package auth_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/repolens-dev/repolens/internal/auth"
)

func TestSignInSignOut(t *testing.T) {
	dir := t.TempDir()
	p := auth.NewFileProvider(dir)

	if id := p.Current(); id != nil {
		t.Errorf("Current before sign-in = %+v, want nil", id)
	}

	if err := p.SignIn(auth.Identity{Email: "dev@example.com", Token: "tok-123"}); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	id := p.Current()
	if id == nil || id.Email != "dev@example.com" || id.Token != "tok-123" {
		t.Errorf("Current = %+v", id)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, "credentials.yaml"))
		if err != nil {
			t.Fatalf("stat credentials: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("credentials mode = %o, want 0600", perm)
		}
	}

	if err := p.SignOut(); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if id := p.Current(); id != nil {
		t.Errorf("Current after sign-out = %+v, want nil", id)
	}

	// Signing out twice is fine.
	if err := p.SignOut(); err != nil {
		t.Errorf("second SignOut = %v, want nil", err)
	}
}

func TestSignInRequiresEmail(t *testing.T) {
	p := auth.NewFileProvider(t.TempDir())
	if err := p.SignIn(auth.Identity{Email: "   "}); err == nil {
		t.Error("SignIn with a blank email succeeded")
	}
}

func TestCurrentToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "credentials.yaml"), []byte(":\t: not yaml"), 0600); err != nil {
		t.Fatalf("writing corrupt credentials: %v", err)
	}

	p := auth.NewFileProvider(dir)
	if id := p.Current(); id != nil {
		t.Errorf("Current with corrupt credentials = %+v, want nil", id)
	}
}
