package responder

import (
	"context"
	"fmt"
)

// Template drafts a fixed acknowledgement that mentions the subject.
type Template struct{}

// NewTemplate creates a template responder.
func NewTemplate() *Template {
	return &Template{}
}

// Generate never fails.
func (t *Template) Generate(_ context.Context, req Request) (string, error) {
	return fmt.Sprintf(
		"Hello %s,\n\nThank you for your email regarding %q.\nI've received your message and will respond to it shortly.\n\nBest regards,\n%s",
		req.RecipientName, req.Subject, req.SignatureName,
	), nil
}
