package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CovenantBits/Covforge/src/internal"
)

func TestGetOrCreateAssignsID(t *testing.T) {
	store := NewMemoryStore()

	sess := store.GetOrCreate("")
	require.NotEmpty(t, sess.ID)
	assert.False(t, sess.CreatedAt.IsZero())

	again, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, again)
}

func TestGetOrCreateReusesExisting(t *testing.T) {
	store := NewMemoryStore()

	first := store.GetOrCreate("abc")
	second := store.GetOrCreate("abc")
	assert.Same(t, first, second)
}

func TestStoreTurnNumbersSequentially(t *testing.T) {
	store := NewMemoryStore()
	sess := store.GetOrCreate("")

	require.NoError(t, store.StoreTurn(sess.ID, Turn{Intent: "first", Code: "code-1"}))
	require.NoError(t, store.StoreTurn(sess.ID, Turn{Intent: "second", Code: "code-2"}))

	stored, ok := store.Get(sess.ID)
	require.True(t, ok)
	require.Len(t, stored.Turns, 2)
	assert.Equal(t, 1, stored.Turns[0].Number)
	assert.Equal(t, 2, stored.Turns[1].Number)
	assert.Equal(t, "code-2", stored.CurrentCode, "latest code tracked for follow-up edits")
	assert.False(t, stored.Turns[0].CreatedAt.IsZero())
}

func TestStoreTurnUnknownSession(t *testing.T) {
	store := NewMemoryStore()
	err := store.StoreTurn("missing", Turn{Intent: "x"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreTurnKeepsIntentModel(t *testing.T) {
	store := NewMemoryStore()
	sess := store.GetOrCreate("s1")

	model := internal.IntentModel{ContractType: "escrow", Features: []string{"escrow"}}
	require.NoError(t, store.StoreTurn(sess.ID, Turn{Intent: "escrow please", IntentModel: model, Code: "c"}))

	stored, _ := store.Get("s1")
	assert.Equal(t, "escrow", stored.Turns[0].IntentModel.ContractType)
}

func TestDelete(t *testing.T) {
	store := NewMemoryStore()
	sess := store.GetOrCreate("gone")

	assert.True(t, store.Delete(sess.ID))
	assert.False(t, store.Delete(sess.ID))
	_, ok := store.Get(sess.ID)
	assert.False(t, ok)
}
