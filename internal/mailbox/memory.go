package mailbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nhle/mailtriage/internal/model"
)

// SentMail records one reply accepted by a MemoryStore.
type SentMail struct {
	To      string
	Subject string
	Body    string
	Draft   bool
}

// MemoryStore is an in-memory MailStore. It backs tests and dry runs
// against fixture mailboxes.
type MemoryStore struct {
	mu       sync.Mutex
	messages []model.Message
	read     map[string]bool
	sent     []SentMail

	// SendErr, when set, is consulted before every Send or SaveDraft.
	SendErr func(to, subject string) error

	// MarkReadErr, when set, is consulted before every MarkRead.
	MarkReadErr func(id string) error
}

// NewMemoryStore creates a store holding msgs, all unread, in the given order.
func NewMemoryStore(msgs ...model.Message) *MemoryStore {
	s := &MemoryStore{read: make(map[string]bool)}
	s.messages = append(s.messages, msgs...)
	return s
}

// ListUnread returns up to limit unread messages in insertion order.
func (s *MemoryStore) ListUnread(_ context.Context, limit int) ([]MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var refs []MessageRef
	for _, m := range s.messages {
		if s.read[m.ID] {
			continue
		}
		if limit > 0 && len(refs) >= limit {
			break
		}
		refs = append(refs, MessageRef{ID: m.ID})
	}
	return refs, nil
}

// GetMessage returns a copy of the message with the given id.
func (s *MemoryStore) GetMessage(_ context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			msg := m
			return &msg, nil
		}
	}
	return nil, fmt.Errorf("fetching message %s: %w", id, ErrNotFound)
}

// Send records a sent reply.
func (s *MemoryStore) Send(_ context.Context, to, subject, body string) (*SendResult, error) {
	return s.record(to, subject, body, false)
}

// SaveDraft records a drafted reply.
func (s *MemoryStore) SaveDraft(_ context.Context, to, subject, body string) (*SendResult, error) {
	return s.record(to, subject, body, true)
}

func (s *MemoryStore) record(to, subject, body string, draft bool) (*SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SendErr != nil {
		if err := s.SendErr(to, subject); err != nil {
			return nil, err
		}
	}
	s.sent = append(s.sent, SentMail{To: to, Subject: subject, Body: body, Draft: draft})
	return &SendResult{MessageID: "<" + uuid.NewString() + "@mailtriage.local>"}, nil
}

// MarkRead flags the message as read.
func (s *MemoryStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.MarkReadErr != nil {
		if err := s.MarkReadErr(id); err != nil {
			return err
		}
	}
	for _, m := range s.messages {
		if m.ID == id {
			s.read[id] = true
			return nil
		}
	}
	return fmt.Errorf("marking message %s read: %w", id, ErrNotFound)
}

// MarkUnread clears the read flag, as when a user reopens a message.
func (s *MemoryStore) MarkUnread(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.read, id)
}

// IsRead reports whether the message has been marked read.
func (s *MemoryStore) IsRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read[id]
}

// Sent returns a copy of every recorded reply.
func (s *MemoryStore) Sent() []SentMail {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SentMail, len(s.sent))
	copy(out, s.sent)
	return out
}
