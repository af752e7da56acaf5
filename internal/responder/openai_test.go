package responder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOpenAI("test-key", "", 0, zap.NewNop(),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
}

func TestOpenAIGenerate(t *testing.T) {
	var got map[string]any
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "Hi Bob,\n\nNoted.\n\n[Your Name]"}
			}]
		}`))
	})

	text, err := o.Generate(context.Background(), Request{
		RecipientName: "Bob",
		Subject:       "Status",
		SignatureName: "Emmy",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Bob,\n\nNoted.\n\nEmmy", text)
	assert.Equal(t, defaultOpenAIModel, got["model"])
}

func TestOpenAIGenerateError(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	})

	_, err := o.Generate(context.Background(), Request{Subject: "x"})
	assert.Error(t, err)
}

func TestOpenAIGenerateNoChoices(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "choices": []}`))
	})

	_, err := o.Generate(context.Background(), Request{Subject: "x"})
	assert.ErrorIs(t, err, ErrEmptyReply)
}
