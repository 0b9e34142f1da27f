package session

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/dto"
)

// ProblemLister fetches the ordered problem list used for navigation.
type ProblemLister interface {
	ListProblems(ctx context.Context) ([]dto.ProblemResponse, error)
}

// Navigation is the position of the current problem inside the ordered list.
// Index is -1 when the current problem is absent.
type Navigation struct {
	IDs   []uint
	Index int
}

// Locate finds current inside ids.
func Locate(ids []uint, current uint) Navigation {
	index := -1
	for i, id := range ids {
		if id == current {
			index = i
			break
		}
	}
	return Navigation{IDs: ids, Index: index}
}

// CanGoPrev reports whether a predecessor exists.
func (n Navigation) CanGoPrev() bool {
	return n.Index > 0
}

// CanGoNext reports whether a successor exists.
func (n Navigation) CanGoNext() bool {
	return n.Index >= 0 && n.Index < len(n.IDs)-1
}

// Prev returns the predecessor id.
func (n Navigation) Prev() (uint, bool) {
	if !n.CanGoPrev() {
		return 0, false
	}
	return n.IDs[n.Index-1], true
}

// Next returns the successor id.
func (n Navigation) Next() (uint, bool) {
	if !n.CanGoNext() {
		return 0, false
	}
	return n.IDs[n.Index+1], true
}

func (n Navigation) view() NavigationView {
	return NavigationView{
		Index:     n.Index,
		Total:     len(n.IDs),
		CanGoPrev: n.CanGoPrev(),
		CanGoNext: n.CanGoNext(),
	}
}

// Sequencer loads the flat problem list and positions the current problem in it.
type Sequencer struct {
	lister ProblemLister
	logger zerolog.Logger
}

// NewSequencer constructs a navigation sequencer.
func NewSequencer(lister ProblemLister, logger zerolog.Logger) *Sequencer {
	return &Sequencer{
		lister: lister,
		logger: logger.With().Str("component", "navigation_sequencer").Logger(),
	}
}

// Load fetches the list and locates current. On failure navigation is disabled.
func (s *Sequencer) Load(ctx context.Context, current uint) (Navigation, error) {
	problems, err := s.lister.ListProblems(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("problem list fetch failed")
		}
		return Navigation{Index: -1}, transient("list problems", err)
	}

	ids := make([]uint, 0, len(problems))
	for _, problem := range problems {
		ids = append(ids, problem.ID)
	}

	nav := Locate(ids, current)
	s.logger.Debug().Uint("problem_id", current).Int("index", nav.Index).Int("total", len(ids)).Msg("navigation located")
	return nav, nil
}
