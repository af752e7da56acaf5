package responder

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/model"
)

func TestTruncateBody(t *testing.T) {
	assert.Equal(t, "short", TruncateBody("short", 200))
	assert.Equal(t, "abc...", TruncateBody("abcdef", 3))
	assert.Equal(t, "héé...", TruncateBody("hééllo", 3))
	assert.Equal(t, "untouched", TruncateBody("untouched", 0))
	assert.Equal(t, strings.Repeat("x", 200)+"...", TruncateBody(strings.Repeat("x", 201), 200))
}

func TestFallbackReply(t *testing.T) {
	got := FallbackReply("Jane", "Emmy")
	assert.True(t, strings.HasPrefix(got, "Hi Jane,"))
	assert.Contains(t, got, "Thank you for your email")
	assert.True(t, strings.HasSuffix(got, "Best regards,\nEmmy"))
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt(Request{
		RecipientName:     "Jane",
		Subject:           "Quarterly Invoice",
		TruncatedBody:     "Please see attached.",
		StyleInstructions: "Keep it under three sentences.",
		SignatureName:     "Emmy",
	})

	assert.True(t, strings.HasPrefix(got, "Write a professional email reply to Jane regarding 'Quarterly Invoice'."))
	assert.Contains(t, got, "Keep it under three sentences.")
	assert.Contains(t, got, "Sign the reply as Emmy.")
	assert.Contains(t, got, "Original email content:\nPlease see attached.")
	assert.True(t, strings.HasSuffix(got, responseCue))
}

func TestBuildPromptWithoutBody(t *testing.T) {
	got := BuildPrompt(Request{Subject: "Hello"})
	assert.NotContains(t, got, contextLead)
	assert.True(t, strings.HasSuffix(got, "'Hello'.\n\n"+responseCue))
}

func TestTemplateGenerate(t *testing.T) {
	got, err := NewTemplate().Generate(context.Background(), Request{
		RecipientName: "Jane",
		Subject:       "Hi there",
		SignatureName: "Emmy",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "Hello Jane,")
	assert.Contains(t, got, `"Hi there"`)
	assert.True(t, strings.HasSuffix(got, "Emmy"))
}

func TestNewSelectsProvider(t *testing.T) {
	log := zap.NewNop()

	r, err := New(model.ResponderConfig{Provider: "template"}, "", log)
	require.NoError(t, err)
	assert.IsType(t, &Template{}, r)

	r, err = New(model.ResponderConfig{Provider: "anthropic"}, "key", log)
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, r)

	r, err = New(model.ResponderConfig{Provider: "openai"}, "key", log)
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, r)

	_, err = New(model.ResponderConfig{Provider: "anthropic"}, "", log)
	assert.ErrorContains(t, err, "api key")

	_, err = New(model.ResponderConfig{Provider: "markov"}, "key", log)
	assert.ErrorContains(t, err, "unknown responder provider")
}
