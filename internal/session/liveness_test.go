package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-go/internal/dto"
)

type notFoundStatus struct{}

func (notFoundStatus) ContestStatus(context.Context, uint) (dto.ContestStatusResponse, error) {
	return dto.ContestStatusResponse{}, notFound("contest status")
}

func TestMonitorCheck(t *testing.T) {
	backend := newFakeBackend()
	backend.status[2] = dto.ContestStatusResponse{Active: true, Exists: false}
	monitor := NewMonitor(backend, 0, zerolog.Nop())
	require.Equal(t, DefaultPollInterval, monitor.Interval())

	sample := monitor.Check(context.Background(), 1)
	require.NoError(t, sample.Err)
	require.True(t, sample.Status.Active)
	require.Equal(t, "Spring Cup", sample.Status.ContestName)

	sample = monitor.Check(context.Background(), 2)
	require.False(t, sample.Status.Exists)
	require.False(t, sample.Status.Active)

	backend.set(func(b *fakeBackend) { b.statusErr = errBackendDown })
	sample = monitor.Check(context.Background(), 1)
	require.Error(t, sample.Err)

	gone := NewMonitor(notFoundStatus{}, time.Second, zerolog.Nop()).Check(context.Background(), 1)
	require.NoError(t, gone.Err)
	require.False(t, gone.Status.Exists)
}

func TestMonitorRunStopsOnceContestIsGone(t *testing.T) {
	backend := newFakeBackend()
	delete(backend.status, 1)
	monitor := NewMonitor(backend, 5*time.Millisecond, zerolog.Nop())

	var samples []Sample
	monitor.Run(context.Background(), 1, func(s Sample) { samples = append(samples, s) })

	require.Len(t, samples, 1)
	require.False(t, samples[0].Status.Exists)
}

func TestMonitorRunPollsUntilCancelled(t *testing.T) {
	backend := newFakeBackend()
	monitor := NewMonitor(backend, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	monitor.Run(ctx, 1, func(Sample) {
		count++
		if count == 3 {
			cancel()
		}
	})

	require.Equal(t, 3, count)
}
