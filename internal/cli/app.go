// app.go wires the collaborators every command needs: config, event log,
// store, gateway, auth, mirror, and the session machine.
package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/repolens-dev/repolens/internal/auth"
	"github.com/repolens-dev/repolens/internal/config"
	"github.com/repolens-dev/repolens/internal/conversation"
	"github.com/repolens-dev/repolens/internal/gateway"
	"github.com/repolens-dev/repolens/internal/log"
	"github.com/repolens-dev/repolens/internal/mirror"
	"github.com/repolens-dev/repolens/internal/session"
	"github.com/repolens-dev/repolens/internal/storage"
)

// app holds one fully wired instance of the client.
type app struct {
	dir     string
	cfg     *config.Config
	logger  *log.Logger
	store   *conversation.Store
	auth    auth.Provider
	machine *session.Machine

	closers []func() error
}

// buildApp assembles the client from config. The store is loaded once,
// here; a corrupt blob has already been degraded to an empty store by the
// time buildApp returns.
func buildApp() (*app, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	logger, err := log.NewLogger(dir)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	a := &app{dir: dir, cfg: cfg, logger: logger}

	var blob storage.Blob
	switch cfg.Storage.Backend {
	case "", "file":
		blob = storage.NewFile(filepath.Join(dir, "conversations.json"))
	case "sqlite":
		db, err := storage.NewSQLite(filepath.Join(dir, "repolens.db"), "conversations")
		if err != nil {
			return nil, fmt.Errorf("opening sqlite storage: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		blob = db
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	a.store = conversation.Open(blob, logger)
	a.auth = auth.NewFileProvider(dir)

	if cfg.Mirror.Enabled {
		mirrorURL := cfg.Mirror.URL
		if mirrorURL == "" {
			mirrorURL = cfg.Backend.URL
		}
		a.store.Subscribe(mirror.New(mirrorURL, a.auth, logger))
	}

	gw := gateway.NewClient(cfg.Backend.URL, gateway.ClientOptions{
		Timeout:  time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		RetryMax: cfg.Backend.RetryMax,
	})
	a.machine = session.New(gw, a.store, logger)

	return a, nil
}

// Close releases resources held by the app.
func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

// resolveID matches arg against stored conversation ids, accepting any
// unambiguous prefix so users can paste the short form from listings.
func (a *app) resolveID(arg string) (string, error) {
	if _, ok := a.store.Get(arg); ok {
		return arg, nil
	}

	var matches []string
	for _, c := range a.store.List() {
		if strings.HasPrefix(c.ID, arg) {
			matches = append(matches, c.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("conversation %q: %w", arg, conversation.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("conversation id %q is ambiguous (%d matches)", arg, len(matches))
	}
}

// latestConfirmed returns the most recently created confirmed
// conversation, or nil.
func (a *app) latestConfirmed() *conversation.Conversation {
	var latest *conversation.Conversation
	for _, c := range a.store.List() {
		if c.Confirmed() {
			latest = c
		}
	}
	return latest
}
