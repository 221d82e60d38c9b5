package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/repolens-dev/repolens/internal/log"
	"github.com/repolens-dev/repolens/internal/storage"
)

// ErrNotFound is returned when an operation references a conversation id
// that is not in the store.
var ErrNotFound = errors.New("conversation not found")

// Observer is notified after a store mutation has been applied and
// persisted. The remote mirror subscribes; the session machine subscribes
// to learn about deletions of its active conversation.
type Observer interface {
	FollowUpAppended(id string, fu FollowUp)
	ConversationRemoved(id string)
}

// snapshot is the serialized form of the whole store: every conversation,
// in insertion order.
type snapshot struct {
	Conversations []*Conversation `json:"conversations"`
}

// Store is the durable collection of all conversations this client has
// created, indexed by request id with insertion order preserved. It is the
// sole owner of the persisted records; it hands out clones.
//
// Every successful mutation is flushed to the blob synchronously before
// the call returns. A flush failure is logged, never surfaced: the
// in-memory state stays authoritative for the current run.
//
// Safe for concurrent use: session operations mutate the store from
// command goroutines while the UI goroutine reads it. Observers are
// notified after the store's lock is released, so an observer may call
// back into the store.
type Store struct {
	blob   storage.Blob
	logger *log.Logger

	mu        sync.Mutex
	order     []string
	byID      map[string]*Conversation
	observers []Observer
}

// Open loads the store from blob. A corrupt or unparseable blob is treated
// as an empty store: logged once, never fatal.
func Open(blob storage.Blob, logger *log.Logger) *Store {
	s := &Store{
		blob:   blob,
		logger: logger,
		byID:   make(map[string]*Conversation),
	}

	data, err := blob.Load()
	if err == nil && len(data) > 0 {
		var snap snapshot
		err = json.Unmarshal(data, &snap)
		if err == nil {
			for _, conv := range snap.Conversations {
				if conv == nil || conv.ID == "" {
					continue
				}
				if _, exists := s.byID[conv.ID]; !exists {
					s.order = append(s.order, conv.ID)
				}
				s.byID[conv.ID] = conv
			}
		}
	}
	if err != nil {
		_ = logger.Append(log.Event{Event: log.EventStoreLoadFailed, Error: err.Error()})
	}

	return s
}

// Subscribe registers an observer for append and delete events.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Put inserts conv, or overwrites the stored conversation with the same
// id. It is used for creation and for the single controlled write of
// InitialResult; it never reorders existing entries.
func (s *Store) Put(conv *Conversation) error {
	if conv == nil || conv.ID == "" {
		return fmt.Errorf("put conversation: missing id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[conv.ID]; !exists {
		s.order = append(s.order, conv.ID)
	}
	s.byID[conv.ID] = conv.Clone()

	s.flushLocked()
	return nil
}

// AppendFollowUp appends fu to the conversation's follow-up sequence.
func (s *Store) AppendFollowUp(id string, fu FollowUp) error {
	s.mu.Lock()
	conv, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("append follow-up to %s: %w", id, ErrNotFound)
	}

	conv.FollowUps = append(conv.FollowUps, fu)
	s.flushLocked()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		o.FollowUpAppended(id, fu)
	}
	return nil
}

// Remove deletes the conversation. Removing an id that is not present is
// a no-op.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return nil
	}

	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.flushLocked()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		o.ConversationRemoved(id)
	}
	return nil
}

// Get returns a clone of the conversation, or (nil, false) if absent.
func (s *Store) Get(id string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// List returns clones of all conversations in insertion order.
func (s *Store) List() []*Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Len returns the number of stored conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// flushLocked serializes the store and writes it through the blob. Caller
// holds s.mu. Failures are logged only; the in-memory mutation has
// already been applied.
func (s *Store) flushLocked() {
	snap := snapshot{Conversations: make([]*Conversation, 0, len(s.order))}
	for _, id := range s.order {
		snap.Conversations = append(snap.Conversations, s.byID[id])
	}

	data, err := json.Marshal(snap)
	if err == nil {
		err = s.blob.Save(data)
	}
	if err != nil {
		_ = s.logger.Append(log.Event{Event: log.EventPersistFailed, Error: err.Error()})
	}
}
