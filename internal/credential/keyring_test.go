package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useArrayKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	prev := openRing
	openRing = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { openRing = prev })
}

func TestSetGetDelete(t *testing.T) {
	useArrayKeyring(t)

	key := IMAPPasswordKey("work")
	require.NoError(t, Set(key, "s3cret"))

	got, err := Get(key)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, Delete(key))
	_, err = Get(key)
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestResolve(t *testing.T) {
	useArrayKeyring(t)

	got, err := Resolve("from-config", APIKeyKey("openai"))
	require.NoError(t, err)
	assert.Equal(t, "from-config", got)

	got, err = Resolve("", APIKeyKey("openai"))
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, Set(APIKeyKey("openai"), "sk-test"))
	got, err = Resolve("", APIKeyKey("openai"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got)
}

func TestKeyNames(t *testing.T) {
	assert.Equal(t, "imap:work", IMAPPasswordKey("work"))
	assert.Equal(t, "responder:anthropic", APIKeyKey("anthropic"))
}
