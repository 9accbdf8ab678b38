package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTripAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	var missing []string
	ok, err := store.Load(ctx, "activities", &missing)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "jwt", "token"))

	var jwt string
	ok, err = store.Load(ctx, "jwt", &jwt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token", jwt)

	require.NoError(t, store.Delete(ctx, "jwt", "unknown"))
	ok, err = store.Load(ctx, "jwt", &jwt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DecodeError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Save(ctx, "lockers", "not a list"))

	var lockers []int
	ok, err := store.Load(ctx, "lockers", &lockers)
	assert.True(t, ok)
	assert.Error(t, err)
}
