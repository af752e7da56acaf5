// Package mailbox defines the MailStore capability used by the triage
// core and provides IMAP/SMTP, in-memory and dry-run implementations.
package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mailtriage/internal/model"
)

// ErrNotFound is returned when a message id does not resolve.
var ErrNotFound = errors.New("message not found")

// AuthError indicates that authentication with the mail server failed.
type AuthError struct {
	Server  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Server, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// MessageRef identifies a message returned by a listing.
type MessageRef struct {
	ID string
}

// SendResult describes a delivered or stored reply.
type SendResult struct {
	// MessageID is the Message-ID header of the outgoing reply.
	MessageID string
}

// Reader lists and fetches unread messages.
type Reader interface {
	// ListUnread returns up to limit unread messages in mailbox order.
	// A limit of zero or less returns every unread message.
	// Listing never marks messages read.
	ListUnread(ctx context.Context, limit int) ([]MessageRef, error)

	// GetMessage fetches a single message snapshot.
	GetMessage(ctx context.Context, id string) (*model.Message, error)
}

// Writer sends replies and updates read state.
type Writer interface {
	Send(ctx context.Context, to, subject, body string) (*SendResult, error)

	// SaveDraft stores the reply as a draft instead of sending it.
	SaveDraft(ctx context.Context, to, subject, body string) (*SendResult, error)

	MarkRead(ctx context.Context, id string) error
}

// MailStore is the full mailbox capability.
type MailStore interface {
	Reader
	Writer
}

// Session is implemented by stores that keep a server connection open
// between calls.
type Session interface {
	// Ping opens the session if needed and checks it is usable.
	Ping(ctx context.Context) error

	// EndSession releases the connection. The next call reconnects.
	EndSession() error
}
