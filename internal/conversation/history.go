package conversation

import "time"

// EntryKind distinguishes the initial analysis from follow-up exchanges.
type EntryKind string

// Entry kinds.
const (
	EntryInitial  EntryKind = "initial"
	EntryFollowUp EntryKind = "followUp"
)

// Entry is one element of a conversation's flat Q&A timeline.
type Entry struct {
	Kind   EntryKind
	Prompt string  // the task for initial entries, the question for follow-ups
	Result *Result // set on initial entries once the analysis completed
	Answer string  // set on follow-up entries
	At     time.Time
}

// History reconstructs the ordered Q&A timeline of a conversation: one
// initial entry followed by one entry per stored follow-up, in storage
// order. Pure function over the snapshot it is given; performs no I/O.
func History(c *Conversation) []Entry {
	if c == nil {
		return nil
	}

	entries := make([]Entry, 0, len(c.FollowUps)+1)
	entries = append(entries, Entry{
		Kind:   EntryInitial,
		Prompt: c.Task,
		Result: c.InitialResult,
		At:     c.CreatedAt,
	})
	for _, fu := range c.FollowUps {
		entries = append(entries, Entry{
			Kind:   EntryFollowUp,
			Prompt: fu.Question,
			Answer: fu.Answer,
			At:     fu.AskedAt,
		})
	}
	return entries
}
