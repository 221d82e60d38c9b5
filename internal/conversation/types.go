// Package conversation owns the durable record of analysis threads: the
// data model, the store that persists and indexes them, and history
// reconstruction for display.
package conversation

import "time"

// Result is the analysis output produced by the backend: the files it
// considered relevant and its recommendations for the task.
type Result struct {
	Files           []string `json:"files,omitempty"`
	Recommendations string   `json:"recommendations,omitempty"`
}

// Conversation is one analysis thread, keyed by the request id the backend
// assigned at estimation time. Task, RepoPath, and CreatedAt are immutable
// after creation; InitialResult is written exactly once, when the analysis
// is confirmed (or immediately, when no confirmation was required);
// FollowUps is append-only.
type Conversation struct {
	ID            string     `json:"id"`
	Task          string     `json:"task"`
	RepoPath      string     `json:"repoPath"`
	InitialResult *Result    `json:"initialResult,omitempty"`
	FollowUps     []FollowUp `json:"followUps,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// FollowUp is a question asked against a completed conversation and the
// answer the backend produced with awareness of its context.
type FollowUp struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"askedAt"`
}

// Confirmed reports whether the conversation's analysis ever completed.
// A conversation that was estimated but never confirmed is an orphan:
// visible in history, not resumable.
func (c *Conversation) Confirmed() bool {
	return c.InitialResult != nil
}

// Clone returns a deep copy. The store hands out clones so that callers
// cannot mutate the durable copy behind its back.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	if c.InitialResult != nil {
		res := *c.InitialResult
		res.Files = append([]string(nil), c.InitialResult.Files...)
		out.InitialResult = &res
	}
	out.FollowUps = append([]FollowUp(nil), c.FollowUps...)
	return &out
}
