package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNavigation(t *testing.T) {
	ids := []uint{4, 8, 15}

	first := Locate(ids, 4)
	require.False(t, first.CanGoPrev())
	require.True(t, first.CanGoNext())
	next, ok := first.Next()
	require.True(t, ok)
	require.Equal(t, uint(8), next)
	_, ok = first.Prev()
	require.False(t, ok)

	last := Locate(ids, 15)
	require.True(t, last.CanGoPrev())
	require.False(t, last.CanGoNext())
	prev, ok := last.Prev()
	require.True(t, ok)
	require.Equal(t, uint(8), prev)

	absent := Locate(ids, 16)
	require.Equal(t, -1, absent.Index)
	require.False(t, absent.CanGoPrev())
	require.False(t, absent.CanGoNext())

	single := Locate([]uint{4}, 4)
	require.False(t, single.CanGoPrev())
	require.False(t, single.CanGoNext())
}

func TestSequencerLoad(t *testing.T) {
	backend := newFakeBackend()
	sequencer := NewSequencer(backend, zerolog.Nop())

	nav, err := sequencer.Load(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []uint{1, 2, 3}, nav.IDs)
	require.Equal(t, 1, nav.Index)

	backend.set(func(b *fakeBackend) { b.listErr = errBackendDown })
	nav, err = sequencer.Load(context.Background(), 2)
	require.Error(t, err)
	require.Equal(t, -1, nav.Index)
	require.False(t, nav.CanGoNext())
}
