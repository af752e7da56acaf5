package mailbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/mailtriage/internal/model"
)

func TestMemoryStoreReadState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(
		model.Message{ID: "1", Subject: "a"},
		model.Message{ID: "2", Subject: "b"},
	)

	refs, err := s.ListUnread(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []MessageRef{{ID: "1"}, {ID: "2"}}, refs)

	require.NoError(t, s.MarkRead(ctx, "1"))
	refs, err = s.ListUnread(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []MessageRef{{ID: "2"}}, refs)

	s.MarkUnread("1")
	assert.False(t, s.IsRead("1"))

	_, err = s.GetMessage(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.MarkRead(ctx, "nope"), ErrNotFound)
}

func TestMemoryStoreSendHooks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.SendErr = func(to, _ string) error {
		if to == "bad@example.com" {
			return errors.New("rejected")
		}
		return nil
	}

	res, err := s.Send(ctx, "ok@example.com", "Re: x", "body")
	require.NoError(t, err)
	assert.NotEmpty(t, res.MessageID)

	_, err = s.Send(ctx, "bad@example.com", "Re: y", "body")
	assert.EqualError(t, err, "rejected")

	_, err = s.SaveDraft(ctx, "ok@example.com", "Re: z", "body")
	require.NoError(t, err)

	sent := s.Sent()
	require.Len(t, sent, 2)
	assert.False(t, sent[0].Draft)
	assert.True(t, sent[1].Draft)
}

func TestDryRunHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore(model.Message{ID: "1", Subject: "Invoice"})
	core, logs := observer.New(zap.InfoLevel)
	d := NewDryRun(inner, zap.New(core))

	refs, err := d.ListUnread(ctx, 5)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	msg, err := d.GetMessage(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Invoice", msg.Subject)

	_, err = d.Send(ctx, "a@example.com", "Re: Invoice", "hi")
	require.NoError(t, err)
	_, err = d.SaveDraft(ctx, "a@example.com", "Re: Invoice", "hi")
	require.NoError(t, err)
	require.NoError(t, d.MarkRead(ctx, "1"))

	assert.Empty(t, inner.Sent())
	assert.False(t, inner.IsRead("1"))
	assert.Equal(t, 3, logs.Len())
	assert.Equal(t, "dry run: would send reply", logs.All()[0].Message)
}
