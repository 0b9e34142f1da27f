package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/observability"
)

// DefaultPollInterval is how often contest liveness is sampled.
const DefaultPollInterval = 10 * time.Second

// StatusSource fetches the status of the contest owning a problem.
type StatusSource interface {
	ContestStatus(ctx context.Context, problemID uint) (dto.ContestStatusResponse, error)
}

// Sample is one liveness observation. Err is set for transient failures, in
// which case Status is meaningless and the previous sample stays in effect.
type Sample struct {
	Status LivenessStatus
	Err    error
}

// Monitor polls contest liveness for one problem.
type Monitor struct {
	source   StatusSource
	interval time.Duration
	logger   zerolog.Logger
}

// NewMonitor constructs a liveness monitor.
func NewMonitor(source StatusSource, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		source:   source,
		interval: interval,
		logger:   logger.With().Str("component", "liveness_monitor").Logger(),
	}
}

// Interval returns the poll interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Run samples immediately and then on every interval until ctx is cancelled or
// the contest is reported gone. A not-found failure counts as a gone contest so
// the session locks instead of retrying forever.
func (m *Monitor) Run(ctx context.Context, problemID uint, emit func(Sample)) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		sample := m.Check(ctx, problemID)
		if ctx.Err() != nil {
			return
		}
		emit(sample)
		if sample.Err == nil && !sample.Status.Exists {
			m.logger.Info().Uint("problem_id", problemID).Msg("contest gone, liveness polling stopped")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Check takes one sample.
func (m *Monitor) Check(ctx context.Context, problemID uint) Sample {
	payload, err := m.source.ContestStatus(ctx, problemID)
	if err != nil {
		if IsNotFound(err) {
			observability.LivenessPolls().WithLabelValues("gone").Inc()
			return Sample{Status: LivenessStatus{Exists: false, Active: false}}
		}
		if ctx.Err() == nil {
			m.logger.Warn().Err(err).Uint("problem_id", problemID).Msg("contest status check failed")
			observability.LivenessPolls().WithLabelValues("error").Inc()
		}
		return Sample{Err: transient("contest status", err)}
	}

	status := LivenessStatus{
		Exists:      payload.Exists,
		Active:      payload.Active && payload.Exists,
		ContestName: payload.ContestName,
		StartTime:   copyTime(payload.StartTime),
		EndTime:     copyTime(payload.EndTime),
	}

	switch {
	case !status.Exists:
		observability.LivenessPolls().WithLabelValues("gone").Inc()
	case !status.Active:
		observability.LivenessPolls().WithLabelValues("inactive").Inc()
	default:
		observability.LivenessPolls().WithLabelValues("active").Inc()
	}

	return Sample{Status: status}
}
