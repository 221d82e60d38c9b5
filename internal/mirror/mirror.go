// Package mirror forwards store mutations to the backend's per-user
// history resource. It is a best-effort observer: it only acts when a
// user is signed in, failures are logged and never retried, and nothing
// it does feeds back into local state.
package mirror

import (
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/repolens-dev/repolens/internal/auth"
	"github.com/repolens-dev/repolens/internal/conversation"
	"github.com/repolens-dev/repolens/internal/log"
)

// Mirror implements conversation.Observer.
type Mirror struct {
	http     *resty.Client
	provider auth.Provider
	logger   *log.Logger
}

// New creates a Mirror targeting the history API at baseURL.
func New(baseURL string, provider auth.Provider, logger *log.Logger) *Mirror {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", "repolens")

	return &Mirror{
		http:     rc,
		provider: provider,
		logger:   logger,
	}
}

type followUpPayload struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"askedAt"`
	User     string    `json:"user"`
}

// FollowUpAppended mirrors a follow-up append for the signed-in user.
func (m *Mirror) FollowUpAppended(id string, fu conversation.FollowUp) {
	ident := m.provider.Current()
	if ident == nil {
		return
	}

	resp, err := m.http.R().
		SetAuthToken(ident.Token).
		SetBody(followUpPayload{
			Question: fu.Question,
			Answer:   fu.Answer,
			AskedAt:  fu.AskedAt,
			User:     ident.Email,
		}).
		Post("/api/history/" + id + "/followups")
	m.report(id, resp, err)
}

// ConversationRemoved mirrors a deletion for the signed-in user.
func (m *Mirror) ConversationRemoved(id string) {
	ident := m.provider.Current()
	if ident == nil {
		return
	}

	resp, err := m.http.R().
		SetAuthToken(ident.Token).
		Delete("/api/history/" + id)
	m.report(id, resp, err)
}

func (m *Mirror) report(id string, resp *resty.Response, err error) {
	if err != nil {
		_ = m.logger.Append(log.Event{Event: log.EventMirrorFailed, RequestID: id, Error: err.Error()})
		return
	}
	if resp.IsError() {
		_ = m.logger.Append(log.Event{Event: log.EventMirrorFailed, RequestID: id, Error: resp.Status()})
	}
}
