// Package responder drafts reply bodies for auto-responses, either from
// a fixed template or from an LLM provider.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/model"
)

// Provider names accepted in the responder config.
const (
	ProviderTemplate  = "template"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ErrEmptyReply is returned when a provider produced no usable text.
var ErrEmptyReply = errors.New("responder returned an empty reply")

// Request carries the context a reply is drafted from.
type Request struct {
	RecipientName     string
	Subject           string
	TruncatedBody     string
	StyleInstructions string
	SignatureName     string
}

// Responder drafts a reply body. Implementations return an error value
// on failure rather than panicking so callers can fall back.
type Responder interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// New builds the responder selected by cfg. apiKey is required for LLM
// providers.
func New(cfg model.ResponderConfig, apiKey string, logger *zap.Logger) (Responder, error) {
	switch cfg.Provider {
	case ProviderTemplate, "":
		return NewTemplate(), nil
	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("responder %s: api key is required", cfg.Provider)
		}
		return NewAnthropic(apiKey, cfg.Model, cfg.MaxTokens, logger), nil
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("responder %s: api key is required", cfg.Provider)
		}
		return NewOpenAI(apiKey, cfg.Model, cfg.MaxTokens, logger), nil
	default:
		return nil, fmt.Errorf("unknown responder provider %q", cfg.Provider)
	}
}

// TruncateBody cuts body to at most max runes, appending "..." when it
// was shortened. A non-positive max leaves the body unchanged.
func TruncateBody(body string, max int) string {
	if max <= 0 {
		return body
	}
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "..."
}

// FallbackReply is the deterministic reply used when drafting fails.
func FallbackReply(name, signature string) string {
	return fmt.Sprintf(
		"Hi %s,\n\nThank you for your email. I've received your message and will get back to you soon.\n\nBest regards,\n%s",
		name, signature,
	)
}

// Prompt markers shared by BuildPrompt and CleanGenerated.
const (
	promptLead      = "Write a professional email reply"
	contextLead     = "Original email content:"
	responseCue     = "Write a professional and helpful response:"
	namePlaceholder = "[Your Name]"
)

// BuildPrompt renders the LLM instruction for req.
func BuildPrompt(req Request) string {
	var sb strings.Builder

	sb.WriteString(promptLead)
	if req.RecipientName != "" {
		sb.WriteString(" to " + req.RecipientName)
	}
	if req.Subject != "" {
		sb.WriteString(fmt.Sprintf(" regarding '%s'", req.Subject))
	}
	sb.WriteString(".")

	if style := strings.TrimSpace(req.StyleInstructions); style != "" {
		sb.WriteString("\n" + style)
	}
	if req.SignatureName != "" {
		sb.WriteString("\nSign the reply as " + req.SignatureName + ".")
	}

	if req.TruncatedBody != "" {
		sb.WriteString("\n\n" + contextLead + "\n")
		sb.WriteString(req.TruncatedBody)
	}
	sb.WriteString("\n\n" + responseCue)

	return sb.String()
}
