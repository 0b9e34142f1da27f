package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/arena-go/internal/observability"
)

const subscriberBufferSize = 16

// Dependencies are the backend capabilities a session consumes.
type Dependencies struct {
	Problems    ProblemSource
	Submissions SubmissionSource
	Status      StatusSource
	Lister      ProblemLister
	Judge       Judge
	Validator   *validator.Validate
}

// Config tunes a controller.
type Config struct {
	PollInterval    time.Duration
	TickInterval    time.Duration
	DefaultLanguage Language
	Logger          zerolog.Logger
}

// Controller owns one problem-solving session. It merges the results of the
// resolvers, the liveness monitor and the navigation sequencer into a single
// state and is the only writer of that state. Every asynchronous result is
// tagged with the generation it was issued for and dropped once the session
// has moved to another problem.
type Controller struct {
	problems    *ProblemResolver
	submissions *SubmissionResolver
	monitor     *Monitor
	sequencer   *Sequencer
	dispatcher  *Dispatcher
	countdown   *Countdown
	defaultLang Language
	logger      zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	tasks  *errgroup.Group
	st     state
	closed bool

	// clockMu serialises generation checks with countdown resets.
	clockMu sync.Mutex

	subMu       sync.RWMutex
	subscribers map[chan Snapshot]struct{}
}

type state struct {
	problemID          uint
	problem            *Problem
	loadError          string
	snippets           SnippetSet
	snippetsLoaded     bool
	submission         *Submission
	submissionResolved bool
	seeded             bool
	code               string
	language           Language
	output             Output
	liveness           Liveness
	deleted            bool
	banner             string
	redirect           string
	nav                Navigation
	running            bool
	submitting         bool
}

// NewController builds an idle controller; call Open to start a session.
func NewController(deps Dependencies, cfg Config) *Controller {
	logger := cfg.Logger.With().Str("component", "session_controller").Logger()

	defaultLang := cfg.DefaultLanguage
	if defaultLang == "" {
		defaultLang = DefaultLanguage
	}

	c := &Controller{
		problems:    NewProblemResolver(deps.Problems, cfg.Logger),
		submissions: NewSubmissionResolver(deps.Submissions, cfg.Logger),
		monitor:     NewMonitor(deps.Status, cfg.PollInterval, cfg.Logger),
		sequencer:   NewSequencer(deps.Lister, cfg.Logger),
		dispatcher:  NewDispatcher(deps.Judge, deps.Validator, cfg.Logger),
		defaultLang: defaultLang,
		logger:      logger,
		st:          state{language: defaultLang, nav: Navigation{Index: -1}, snippets: SnippetSet{}},
		subscribers: make(map[chan Snapshot]struct{}),
	}
	c.countdown = NewCountdown(cfg.TickInterval, func(string) { c.publish() })

	observability.SessionsActive().Inc()
	return c
}

// Open resets the session onto problemID. All prior state is discarded, the
// previous generation's tasks are cancelled, and every fetch is issued again.
func (c *Controller) Open(problemID uint) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}

	prevCancel, prevTasks := c.cancel, c.tasks

	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	tasks := &errgroup.Group{}
	c.cancel = cancel
	c.tasks = tasks
	c.st = state{
		problemID: problemID,
		language:  c.defaultLang,
		snippets:  SnippetSet{},
		nav:       Navigation{Index: -1},
	}
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	if prevTasks != nil {
		_ = prevTasks.Wait()
	}

	c.resetCountdown(gen, nil)

	c.logger.Info().Uint("problem_id", problemID).Uint64("generation", gen).Msg("session opened")

	tasks.Go(func() error {
		c.loadProblem(ctx, gen, problemID)
		return nil
	})
	tasks.Go(func() error {
		snippets := c.problems.ResolveSnippets(ctx, problemID)
		c.apply(gen, func(st *state) {
			st.snippets = snippets
			st.snippetsLoaded = true
			c.maybeSeed(st)
		})
		return nil
	})
	tasks.Go(func() error {
		submission, _ := c.submissions.Resolve(ctx, problemID)
		c.apply(gen, func(st *state) {
			st.submission = submission
			st.submissionResolved = true
			c.maybeSeed(st)
		})
		return nil
	})
	tasks.Go(func() error {
		nav, _ := c.sequencer.Load(ctx, problemID)
		c.apply(gen, func(st *state) {
			st.nav = nav
		})
		return nil
	})
	tasks.Go(func() error {
		c.monitor.Run(ctx, problemID, func(sample Sample) {
			c.applySample(gen, sample)
		})
		return nil
	})

	c.publish()
	return nil
}

// Reload re-opens the current problem.
func (c *Controller) Reload() error {
	c.mu.Lock()
	id := c.st.problemID
	c.mu.Unlock()

	if id == 0 {
		return ErrNoProblem
	}
	return c.Open(id)
}

// Close tears the session down: polling and the countdown stop and
// subscribers are released. It is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	cancel, tasks := c.cancel, c.tasks
	c.cancel, c.tasks = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if tasks != nil {
		_ = tasks.Wait()
	}

	c.clockMu.Lock()
	c.countdown.Stop()
	c.clockMu.Unlock()

	c.subMu.Lock()
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
	c.subMu.Unlock()

	observability.SessionsActive().Dec()
	c.logger.Info().Msg("session closed")
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe streams snapshots after every state change. Slow readers miss
// intermediate snapshots rather than blocking the session.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBufferSize)

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	c.subMu.Lock()
	if closed {
		c.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subscribers[ch]; ok {
				delete(c.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, cleanup
}

// SetCode replaces the editor buffer. An edit made before the seed arrives
// latches the seed so a late submission fetch cannot overwrite it.
func (c *Controller) SetCode(code string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.st.code = code
	c.st.seeded = true
	c.mu.Unlock()

	c.publish()
	return nil
}

// SelectLanguage switches the editor language. The buffer is replaced with the
// language's starter snippet, or cleared when there is none; unsaved edits are
// discarded on purpose, matching starter-code selection.
func (c *Controller) SelectLanguage(lang Language) error {
	parsed, err := ParseLanguage(string(lang))
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.st.language = parsed
	c.st.code, _ = c.st.snippets.Starter(parsed)
	c.st.seeded = true
	c.mu.Unlock()

	c.publish()
	return nil
}

// Test runs the buffer against the problem without persisting anything.
func (c *Controller) Test(ctx context.Context) (Verdict, error) {
	return c.dispatch(ctx, ModeTest)
}

// Submit runs and stores the buffer, replacing any earlier submission.
func (c *Controller) Submit(ctx context.Context) (Verdict, error) {
	return c.dispatch(ctx, ModeSubmit)
}

// Next opens the following problem in the list.
func (c *Controller) Next() (uint, error) {
	return c.navigate("next", Navigation.Next)
}

// Prev opens the preceding problem in the list.
func (c *Controller) Prev() (uint, error) {
	return c.navigate("prev", Navigation.Prev)
}

func (c *Controller) navigate(action string, step func(Navigation) (uint, bool)) (uint, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrSessionClosed
	}
	if err := c.clampLocked(action); err != nil {
		c.refuseLocked(err)
		c.mu.Unlock()
		c.publish()
		return 0, err
	}
	target, ok := step(c.st.nav)
	c.mu.Unlock()

	if !ok {
		return 0, ErrNavigationUnavailable
	}
	if err := c.Open(target); err != nil {
		return 0, err
	}
	return target, nil
}

func (c *Controller) dispatch(ctx context.Context, mode Mode) (Verdict, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Verdict{}, ErrSessionClosed
	}
	st := &c.st
	if err := c.clampLocked(string(mode)); err != nil {
		c.refuseLocked(err)
		c.mu.Unlock()
		c.publish()
		return Verdict{}, err
	}
	if st.problem == nil {
		c.mu.Unlock()
		return Verdict{}, ErrNoProblem
	}
	if st.running || st.submitting {
		c.mu.Unlock()
		return Verdict{}, ErrDispatchInFlight
	}

	if mode == ModeSubmit {
		st.submitting = true
	} else {
		st.running = true
	}
	st.output = Output{Kind: OutputRunning, Message: "Running tests..."}

	gen := c.gen
	liveness := st.liveness
	req := Request{ProblemID: st.problemID, Code: st.code, Language: st.language}
	c.mu.Unlock()
	c.publish()

	verdict, err := c.dispatcher.Dispatch(ctx, mode, liveness, req)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return verdict, err
	}
	st = &c.st
	st.running = false
	st.submitting = false

	switch {
	case err != nil:
		label := "Test failed"
		if mode == ModeSubmit {
			label = "Submission failed"
		}
		st.output = Output{Kind: OutputFailure, Message: fmt.Sprintf("%s: %v", label, err)}
		c.logger.Warn().Err(err).Str("mode", string(mode)).Uint("problem_id", req.ProblemID).Msg("dispatch failed")
	default:
		v := verdict
		st.output = Output{Kind: OutputVerdict, Verdict: &v}
		if mode == ModeSubmit {
			now := time.Now().UTC()
			st.submission = &Submission{
				ProblemID:       req.ProblemID,
				Code:            req.Code,
				Language:        req.Language,
				Status:          verdict.Status,
				Score:           verdict.Score,
				TestCasesPassed: verdict.TestCasesPassed,
				TotalTestCases:  verdict.TotalTestCases,
				SubmittedAt:     &now,
			}
		}
	}
	c.mu.Unlock()
	c.publish()

	return verdict, err
}

func (c *Controller) loadProblem(ctx context.Context, gen uint64, problemID uint) {
	problem, err := c.problems.ResolveProblem(ctx, problemID)
	if ctx.Err() != nil {
		return
	}

	gone := false
	c.apply(gen, func(st *state) {
		switch {
		case st.deleted:
		case errors.Is(err, ErrProblemGone):
			st.deleted = true
			st.problem = nil
			st.banner = "The problem you're looking for doesn't exist or has been removed."
			gone = true
		case err != nil:
			st.loadError = err.Error()
		default:
			p := problem
			st.problem = &p
			st.loadError = ""
		}
	})

	if gone {
		c.logger.Info().Uint("problem_id", problemID).Msg("problem not found, session locked")
		c.resetCountdown(gen, nil)
	}
}

// applySample merges one liveness observation. Once the contest is gone the
// session is locked for good and later samples are ignored.
func (c *Controller) applySample(gen uint64, sample Sample) {
	if sample.Err != nil {
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.st.deleted {
		c.mu.Unlock()
		return
	}

	st := &c.st
	prevPhase, _ := c.phaseLocked()
	prev := st.liveness
	st.liveness = Liveness{Known: true, Status: sample.Status}

	switch {
	case !sample.Status.Exists:
		st.deleted = true
		st.problem = nil
		st.banner = "This contest has been removed."
	case !sample.Status.Active:
		st.banner = deactivatedBanner(sample.Status.ContestName)
	case prev.Known && !prev.Status.Active:
		st.banner = ""
		st.redirect = ""
	}

	phase, reason := c.phaseLocked()
	problemID := st.problemID
	end := sample.Status.EndTime
	if st.deleted {
		end = nil
	}
	endChanged := !prev.Known || !sameInstant(prev.Status.EndTime, end) || st.deleted
	c.mu.Unlock()

	if phase != prevPhase {
		c.logger.Info().Uint("problem_id", problemID).Str("phase", string(phase)).Str("reason", string(reason)).Msg("session phase changed")
	}

	if endChanged {
		c.resetCountdown(gen, end)
	}
	c.publish()
}

// maybeSeed initialises the buffer once per activation: the prior submission
// wins, otherwise the default language's starter code, otherwise empty.
func (c *Controller) maybeSeed(st *state) {
	if st.seeded || !st.submissionResolved {
		return
	}

	if st.submission != nil {
		st.code = st.submission.Code
		st.language = st.submission.Language
		st.seeded = true
		st.output = Output{
			Kind: OutputNotice,
			Message: fmt.Sprintf("Already submitted. Loaded your last submission (status %s). Submitting again replaces it.",
				st.submission.Status),
		}
		return
	}

	if !st.snippetsLoaded {
		return
	}

	st.language = c.defaultLang
	st.code, _ = st.snippets.Starter(c.defaultLang)
	st.seeded = true
}

func (c *Controller) apply(gen uint64, fn func(st *state)) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	fn(&c.st)
	c.mu.Unlock()

	c.publish()
}

// clampLocked refuses actions on a deleted session regardless of the last
// liveness sample, since deletion can also come from the problem fetch.
func (c *Controller) clampLocked(action string) error {
	if c.st.deleted {
		observability.ClampRefusals().WithLabelValues(action).Inc()
		return &ClampError{Action: action, Reason: LockDeleted, Redirect: ContestsRedirect}
	}
	return Clamp(action, c.st.liveness)
}

func (c *Controller) refuseLocked(err error) {
	clamp, ok := err.(*ClampError)
	if !ok {
		return
	}
	c.st.redirect = clamp.Redirect
	if clamp.Reason == LockDeleted {
		if c.st.banner == "" {
			c.st.banner = "This contest has been removed."
		}
		return
	}
	c.st.banner = deactivatedBanner(c.st.liveness.Status.ContestName)
}

func (c *Controller) resetCountdown(gen uint64, end *time.Time) {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()

	c.mu.Lock()
	current := c.gen == gen && !c.closed
	c.mu.Unlock()

	if current {
		c.countdown.Reset(end)
	}
}

func (c *Controller) phaseLocked() (Phase, LockReason) {
	st := &c.st
	switch {
	case st.deleted:
		return PhaseLocked, LockDeleted
	case st.problem == nil:
		return PhaseInitializing, LockNone
	case st.liveness.Known && !st.liveness.Status.Active:
		return PhaseLocked, LockDeactivated
	default:
		return PhaseReady, LockNone
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	st := &c.st
	phase, reason := c.phaseLocked()

	snap := Snapshot{
		Generation:         c.gen,
		ProblemID:          st.problemID,
		Phase:              phase,
		LockReason:         reason,
		Code:               st.code,
		Language:           st.language,
		Languages:          st.snippets.Available(),
		HasPriorSubmission: st.submission != nil,
		Output:             st.output,
		Liveness:           st.liveness,
		Banner:             st.banner,
		Redirect:           st.redirect,
		TimeRemaining:      c.countdown.Text(),
		Navigation:         st.nav.view(),
		Running:            st.running,
		Submitting:         st.submitting,
		LoadError:          st.loadError,
		Closed:             c.closed,
	}

	if st.problem != nil {
		p := *st.problem
		p.Examples = append([]string(nil), st.problem.Examples...)
		p.Images = append([]string(nil), st.problem.Images...)
		snap.Problem = &p
	}
	if st.submission != nil {
		s := *st.submission
		snap.PriorSubmission = &s
	}
	if st.output.Verdict != nil {
		v := *st.output.Verdict
		v.Cases = append([]CaseOutcome(nil), st.output.Verdict.Cases...)
		snap.Output.Verdict = &v
	}
	if phase == PhaseLocked && reason == LockDeleted {
		snap.TimeRemaining = ""
		snap.Navigation.CanGoPrev = false
		snap.Navigation.CanGoNext = false
	}

	return snap
}

func (c *Controller) publish() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

func deactivatedBanner(contestName string) string {
	if contestName == "" {
		return "This contest has been deactivated. Runs and navigation are paused until it is reactivated."
	}
	return fmt.Sprintf("Contest %q has been deactivated. Runs and navigation are paused until it is reactivated.", contestName)
}

func sameInstant(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Equal(*b)
	}
}
