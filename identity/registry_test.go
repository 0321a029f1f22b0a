package identity_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/counsel-relay-api/identity"
	"github.com/linesmerrill/counsel-relay-api/models"
)

func newRegistry(t *testing.T) *identity.Registry {
	t.Helper()
	gen, err := identity.NewHandleGenerator("User-", 4)
	require.NoError(t, err)
	return identity.NewRegistry(identity.NewMemoryStore(), gen, 100)
}

func TestRegistry_ResolveOrCreateIsIdempotent(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	first, err := reg.ResolveOrCreate(ctx, "tg-1001")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := reg.ResolveOrCreate(ctx, "tg-1001")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRegistry_DistinctHandles(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	seen := make(map[string]string)
	for i := 0; i < 500; i++ {
		realID := fmt.Sprintf("tg-%d", i)
		handle, err := reg.ResolveOrCreate(ctx, realID)
		require.NoError(t, err)
		if other, ok := seen[handle]; ok {
			t.Fatalf("handle %s given to both %s and %s", handle, other, realID)
		}
		seen[handle] = realID
	}
}

func TestRegistry_ConcurrentFirstContact(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	handles := make([]string, 32)
	errs := make([]error, 32)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = reg.ResolveOrCreate(ctx, "tg-race")
		}(i)
	}
	wg.Wait()

	for i := range handles {
		require.NoError(t, errs[i])
		assert.Equal(t, handles[0], handles[i])
	}
}

func TestRegistry_HandleSpaceExhausted(t *testing.T) {
	gen, err := identity.NewHandleGeneratorWithSource("U", 1, &sequenceSource{})
	require.NoError(t, err)
	reg := identity.NewRegistry(identity.NewMemoryStore(), gen, 20)
	ctx := context.Background()

	for i := 0; i < gen.Capacity(); i++ {
		_, err := reg.ResolveOrCreate(ctx, fmt.Sprintf("tg-%d", i))
		require.NoError(t, err)
	}

	_, err = reg.ResolveOrCreate(ctx, "tg-one-too-many")
	assert.ErrorIs(t, err, models.ErrHandleSpaceExhausted)
}

func TestRegistry_ReverseLookup(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	handle, err := reg.ResolveOrCreate(ctx, "tg-77")
	require.NoError(t, err)

	realID, err := reg.ReverseLookup(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "tg-77", realID)

	_, err = reg.ReverseLookup(ctx, "User-0000")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegistry_SetBlocked(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	blocked, err := reg.IsBlocked(ctx, "tg-never-seen")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, reg.SetBlocked(ctx, "tg-5", true))
	blocked, err = reg.IsBlocked(ctx, "tg-5")
	require.NoError(t, err)
	assert.True(t, blocked)

	count, err := reg.CountBlocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, reg.SetBlocked(ctx, "tg-5", false))
	blocked, err = reg.IsBlocked(ctx, "tg-5")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestRegistry_StateAndLanguage(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	identityRecord, err := reg.Resolve(ctx, "tg-9")
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, identityRecord.State)

	require.NoError(t, reg.SetState(ctx, "tg-9", models.StateSelectingCategory))
	require.NoError(t, reg.SetLanguage(ctx, "tg-9", "am"))

	identityRecord, err = reg.Get(ctx, "tg-9")
	require.NoError(t, err)
	assert.Equal(t, models.StateSelectingCategory, identityRecord.State)
	assert.Equal(t, "am", identityRecord.Language)

	assert.ErrorIs(t, reg.SetState(ctx, "tg-unknown", models.StateInChat), models.ErrNotFound)
}
