// Package auth holds the signed-in user identity. The core only ever asks
// whether a user is present, to decide if conversations are mirrored
// remotely; credential issuance happens elsewhere.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Identity is a signed-in user.
type Identity struct {
	Email string `yaml:"email"`
	Token string `yaml:"token"`
}

// Provider exposes the current identity and sign-in/sign-out.
type Provider interface {
	// Current returns the signed-in identity, or nil when signed out.
	Current() *Identity
	SignIn(id Identity) error
	SignOut() error
}

const credentialsFile = "credentials.yaml"

// FileProvider keeps credentials in a yaml file inside the config
// directory, readable only by the owner.
type FileProvider struct {
	path string
}

// NewFileProvider creates a FileProvider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{path: filepath.Join(dir, credentialsFile)}
}

// Current reads the credentials file. A missing or unreadable file means
// no user is signed in.
func (p *FileProvider) Current() *Identity {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil
	}

	var id Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return nil
	}
	if id.Email == "" {
		return nil
	}
	return &id
}

// SignIn persists the identity.
func (p *FileProvider) SignIn(id Identity) error {
	if strings.TrimSpace(id.Email) == "" {
		return fmt.Errorf("sign in: email is required")
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	data, err := yaml.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// SignOut removes the credentials file. Signing out while signed out is a
// no-op.
func (p *FileProvider) SignOut() error {
	err := os.Remove(p.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
