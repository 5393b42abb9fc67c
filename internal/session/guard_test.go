package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardAdmitsExactlyOneConcurrentClient(t *testing.T) {
	g := NewGuard()
	ctx := context.Background()

	var admitted atomic.Int32
	var winner atomic.Value
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ok, err := g.Admit(ctx, id)
			assert.NoError(t, err)
			if ok {
				admitted.Add(1)
				winner.Store(id)
			}
		}(fmt.Sprintf("client-%d", i))
	}
	wg.Wait()

	assert.EqualValues(t, 1, admitted.Load())
	holder, held := g.Holder()
	assert.True(t, held)
	assert.Equal(t, winner.Load(), holder)
}

func TestGuardRejectLeavesHolder(t *testing.T) {
	g := NewGuard()
	ctx := context.Background()

	ok, err := g.Admit(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.Admit(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	holder, _ := g.Holder()
	assert.Equal(t, "a", holder)
}

func TestGuardReleaseOnlyByHolder(t *testing.T) {
	g := NewGuard()
	ctx := context.Background()

	_, err := g.Admit(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, g.Release(ctx, "b"))
	holder, held := g.Holder()
	assert.True(t, held)
	assert.Equal(t, "a", holder)

	require.NoError(t, g.Release(ctx, "a"))
	_, held = g.Holder()
	assert.False(t, held)

	ok, err := g.Admit(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuardOccupiedFollowsBinding(t *testing.T) {
	g := NewGuard()
	ctx := context.Background()
	assert.False(t, g.Occupied())

	ok, err := g.Admit(ctx, "kiosk")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, g.Occupied())

	ok, err = g.Admit(ctx, "intruder")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, g.Occupied())

	require.NoError(t, g.Release(ctx, "kiosk"))
	assert.False(t, g.Occupied())
}
