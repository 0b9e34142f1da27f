package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/client"
	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/session"
)

// ErrSessionNotFound indicates the session does not exist or belongs to another user.
var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionIdleTTL is how long an untouched session survives.
const DefaultSessionIdleTTL = 30 * time.Minute

const eventPublishTimeout = 2 * time.Second

// BackendFactory builds the backend a session talks to on behalf of the
// competitor holding token.
type BackendFactory func(token string) (session.Dependencies, error)

// NewContestAPIBackend returns a factory that scopes the contest API client to
// the competitor's token and shares the problem list cache across sessions.
func NewContestAPIBackend(api *client.Client, cache *redis.Client, listTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) BackendFactory {
	return func(token string) (session.Dependencies, error) {
		scoped := api.WithCredentials(client.StaticToken(token))
		return session.Dependencies{
			Problems:    scoped,
			Submissions: scoped,
			Status:      scoped,
			Lister:      NewCachedProblemLister(scoped, cache, listTTL, logger),
			Judge:       scoped,
			Validator:   validate,
		}, nil
	}
}

// SessionConfig tunes the sessions managed by the gateway.
type SessionConfig struct {
	PollInterval    time.Duration
	TickInterval    time.Duration
	IdleTTL         time.Duration
	DefaultLanguage session.Language
}

// SessionService manages competitors' problem-solving sessions.
type SessionService interface {
	Open(ctx context.Context, userID uint, token string, payload dto.SessionOpenRequest) (dto.SessionResponse, error)
	Get(ctx context.Context, userID uint, id string) (dto.SessionResponse, error)
	SetCode(ctx context.Context, userID uint, id string, payload dto.SessionCodeRequest) (dto.SessionResponse, error)
	SetLanguage(ctx context.Context, userID uint, id string, payload dto.SessionLanguageRequest) (dto.SessionResponse, error)
	Test(ctx context.Context, userID uint, id string) (dto.SessionResponse, error)
	Submit(ctx context.Context, userID uint, id string) (dto.SessionResponse, error)
	Next(ctx context.Context, userID uint, id string) (dto.SessionResponse, error)
	Prev(ctx context.Context, userID uint, id string) (dto.SessionResponse, error)
	Reload(ctx context.Context, userID uint, id string) (dto.SessionResponse, error)
	Close(ctx context.Context, userID uint, id string) error
	Watch(userID uint, id string) (<-chan dto.SessionResponse, func(), error)
	StartReaper(ctx context.Context)
	Shutdown()
}

type managedSession struct {
	id         string
	userID     uint
	controller *session.Controller
	stopWatch  func()

	mu       sync.Mutex
	lastSeen time.Time
	watchers int
}

type sessionService struct {
	backend   BackendFactory
	renderer  *ProblemRenderer
	events    SessionEvents
	validator *validator.Validate
	config    SessionConfig
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

// NewSessionService constructs a session service. events may be nil.
func NewSessionService(backend BackendFactory, renderer *ProblemRenderer, events SessionEvents, validate *validator.Validate, cfg SessionConfig, logger zerolog.Logger) SessionService {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultSessionIdleTTL
	}
	if renderer == nil {
		renderer = NewProblemRenderer(nil, logger)
	}
	return &sessionService{
		backend:   backend,
		renderer:  renderer,
		events:    events,
		validator: validate,
		config:    cfg,
		logger:    logger.With().Str("component", "session_service").Logger(),
		now:       time.Now,
		sessions:  make(map[string]*managedSession),
	}
}

func (s *sessionService) Open(ctx context.Context, userID uint, token string, payload dto.SessionOpenRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	deps, err := s.backend(token)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	id := uuid.NewString()
	controller := session.NewController(deps, session.Config{
		PollInterval:    s.config.PollInterval,
		TickInterval:    s.config.TickInterval,
		DefaultLanguage: s.config.DefaultLanguage,
		Logger:          s.logger.With().Str("session_id", id).Uint("user_id", userID).Logger(),
	})
	if err := controller.Open(payload.ProblemID); err != nil {
		controller.Close()
		return dto.SessionResponse{}, err
	}

	managed := &managedSession{id: id, userID: userID, controller: controller, lastSeen: s.now()}
	managed.stopWatch = s.watchPhase(managed)

	s.mu.Lock()
	s.sessions[id] = managed
	s.mu.Unlock()

	snapshot := controller.Snapshot()
	s.publish(ctx, managed, SessionEventOpened, snapshot, "")
	return s.response(id, snapshot), nil
}

func (s *sessionService) Get(ctx context.Context, userID uint, id string) (dto.SessionResponse, error) {
	managed, err := s.lookup(userID, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	return s.response(id, managed.controller.Snapshot()), nil
}

func (s *sessionService) SetCode(ctx context.Context, userID uint, id string, payload dto.SessionCodeRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}
	managed, err := s.lookup(userID, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	if err := managed.controller.SetCode(payload.Code); err != nil {
		return dto.SessionResponse{}, s.closedAsMissing(err)
	}
	return s.response(id, managed.controller.Snapshot()), nil
}

func (s *sessionService) SetLanguage(ctx context.Context, userID uint, id string, payload dto.SessionLanguageRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}
	lang, err := session.ParseLanguage(payload.Language)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	managed, err := s.lookup(userID, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	if err := managed.controller.SelectLanguage(lang); err != nil {
		return dto.SessionResponse{}, s.closedAsMissing(err)
	}
	return s.response(id, managed.controller.Snapshot()), nil
}

func (s *sessionService) Test(ctx context.Context, userID uint, id string) (dto.SessionResponse, error) {
	return s.run(ctx, userID, id, (*session.Controller).Test)
}

func (s *sessionService) Submit(ctx context.Context, userID uint, id string) (dto.SessionResponse, error) {
	return s.run(ctx, userID, id, (*session.Controller).Submit)
}

// run dispatches a test or submit. On refusal the returned response still
// carries the session so callers can show the banner.
func (s *sessionService) run(ctx context.Context, userID uint, id string, dispatch func(*session.Controller, context.Context) (session.Verdict, error)) (dto.SessionResponse, error) {
	managed, err := s.lookup(userID, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	verdict, err := dispatch(managed.controller, ctx)
	snapshot := managed.controller.Snapshot()
	if err != nil {
		return s.response(id, snapshot), s.closedAsMissing(err)
	}

	s.publish(ctx, managed, SessionEventVerdict, snapshot, string(verdict.Status))
	return s.response(id, snapshot), nil
}

func (s *sessionService) Next(ctx context.Context, userID uint, id string) (dto.SessionResponse, error) {
	return s.navigate(ctx, userID, id, (*session.Controller).Next)
}

func (s *sessionService) Prev(ctx context.Context, userID uint, id string) (dto.SessionResponse, error) {
	return s.navigate(ctx, userID, id, (*session.Controller).Prev)
}

func (s *sessionService) navigate(ctx context.Context, userID uint, id string, step func(*session.Controller) (uint, error)) (dto.SessionResponse, error) {
	managed, err := s.lookup(userID, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	_, err = step(managed.controller)
	snapshot := managed.controller.Snapshot()
	if err != nil {
		return s.response(id, snapshot), s.closedAsMissing(err)
	}

	s.publish(ctx, managed, SessionEventNavigated, snapshot, "")
	return s.response(id, snapshot), nil
}

func (s *sessionService) Reload(ctx context.Context, userID uint, id string) (dto.SessionResponse, error) {
	managed, err := s.lookup(userID, id)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	if err := managed.controller.Reload(); err != nil {
		return dto.SessionResponse{}, s.closedAsMissing(err)
	}
	return s.response(id, managed.controller.Snapshot()), nil
}

func (s *sessionService) Close(ctx context.Context, userID uint, id string) error {
	managed, err := s.lookup(userID, id)
	if err != nil {
		return err
	}
	s.remove(ctx, managed)
	return nil
}

// Watch streams session snapshots until the returned cleanup is called or the
// session closes. Watched sessions are never reaped.
func (s *sessionService) Watch(userID uint, id string) (<-chan dto.SessionResponse, func(), error) {
	managed, err := s.lookup(userID, id)
	if err != nil {
		return nil, nil, err
	}

	snapshots, unsubscribe := managed.controller.Subscribe()
	out := make(chan dto.SessionResponse, sessionEventBufferSize)

	managed.mu.Lock()
	managed.watchers++
	managed.mu.Unlock()

	out <- s.response(id, managed.controller.Snapshot())

	go func() {
		defer close(out)
		for snapshot := range snapshots {
			select {
			case out <- s.response(id, snapshot):
			default:
			}
		}
	}()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			unsubscribe()
			managed.mu.Lock()
			managed.watchers--
			managed.lastSeen = s.now()
			managed.mu.Unlock()
		})
	}
	return out, cleanup, nil
}

// StartReaper closes idle sessions until ctx is done.
func (s *sessionService) StartReaper(ctx context.Context) {
	interval := s.config.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reapIdle(ctx)
			}
		}
	}()
}

func (s *sessionService) reapIdle(ctx context.Context) int {
	cutoff := s.now().Add(-s.config.IdleTTL)

	s.mu.RLock()
	var idle []*managedSession
	for _, managed := range s.sessions {
		managed.mu.Lock()
		if managed.watchers == 0 && managed.lastSeen.Before(cutoff) {
			idle = append(idle, managed)
		}
		managed.mu.Unlock()
	}
	s.mu.RUnlock()

	for _, managed := range idle {
		s.logger.Info().Str("session_id", managed.id).Uint("user_id", managed.userID).Msg("reaping idle session")
		s.remove(ctx, managed)
	}
	return len(idle)
}

// Shutdown closes every session.
func (s *sessionService) Shutdown() {
	s.mu.RLock()
	all := make([]*managedSession, 0, len(s.sessions))
	for _, managed := range s.sessions {
		all = append(all, managed)
	}
	s.mu.RUnlock()

	for _, managed := range all {
		s.remove(context.Background(), managed)
	}
}

func (s *sessionService) lookup(userID uint, id string) (*managedSession, error) {
	s.mu.RLock()
	managed, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || managed.userID != userID {
		return nil, ErrSessionNotFound
	}

	managed.mu.Lock()
	managed.lastSeen = s.now()
	managed.mu.Unlock()
	return managed, nil
}

func (s *sessionService) remove(ctx context.Context, managed *managedSession) {
	s.mu.Lock()
	_, ok := s.sessions[managed.id]
	delete(s.sessions, managed.id)
	s.mu.Unlock()
	if !ok {
		return
	}

	snapshot := managed.controller.Snapshot()
	managed.stopWatch()
	managed.controller.Close()
	s.publish(ctx, managed, SessionEventClosed, snapshot, "")
}

// watchPhase publishes an event whenever the session's phase or lock reason changes.
func (s *sessionService) watchPhase(managed *managedSession) func() {
	snapshots, unsubscribe := managed.controller.Subscribe()

	go func() {
		var phase session.Phase
		var reason session.LockReason
		for snapshot := range snapshots {
			if snapshot.Phase == phase && snapshot.LockReason == reason {
				continue
			}
			changed := phase != ""
			phase, reason = snapshot.Phase, snapshot.LockReason
			if changed {
				s.publish(context.Background(), managed, SessionEventPhase, snapshot, "")
			}
		}
	}()

	return unsubscribe
}

func (s *sessionService) publish(ctx context.Context, managed *managedSession, kind string, snapshot session.Snapshot, status string) {
	if s.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	s.events.Publish(ctx, dto.SessionEventResponse{
		SessionID:  managed.id,
		UserID:     managed.userID,
		Kind:       kind,
		ProblemID:  snapshot.ProblemID,
		Phase:      string(snapshot.Phase),
		LockReason: string(snapshot.LockReason),
		Status:     status,
		SentAt:     s.now().UTC(),
	})
}

func (s *sessionService) closedAsMissing(err error) error {
	if errors.Is(err, session.ErrSessionClosed) {
		return ErrSessionNotFound
	}
	return err
}

func (s *sessionService) response(id string, snapshot session.Snapshot) dto.SessionResponse {
	languages := make([]string, 0, len(snapshot.Languages))
	for _, lang := range snapshot.Languages {
		languages = append(languages, string(lang))
	}

	response := dto.SessionResponse{
		ID:                 id,
		Generation:         snapshot.Generation,
		ProblemID:          snapshot.ProblemID,
		Phase:              string(snapshot.Phase),
		LockReason:         string(snapshot.LockReason),
		Problem:            s.renderer.Render(snapshot.Problem),
		Code:               snapshot.Code,
		Language:           string(snapshot.Language),
		Languages:          languages,
		HasPriorSubmission: snapshot.HasPriorSubmission,
		Output: dto.SessionOutputResponse{
			Kind:    string(snapshot.Output.Kind),
			Message: snapshot.Output.Message,
			Verdict: verdictResponse(snapshot.Output.Verdict),
		},
		Contest: dto.SessionContestResponse{
			Known:     snapshot.Liveness.Known,
			Exists:    snapshot.Liveness.Status.Exists,
			Active:    snapshot.Liveness.Status.Active,
			Name:      snapshot.Liveness.Status.ContestName,
			StartTime: snapshot.Liveness.Status.StartTime,
			EndTime:   snapshot.Liveness.Status.EndTime,
		},
		Banner:        snapshot.Banner,
		Redirect:      snapshot.Redirect,
		TimeRemaining: snapshot.TimeRemaining,
		Navigation: dto.SessionNavigationResponse{
			Index:     snapshot.Navigation.Index,
			Total:     snapshot.Navigation.Total,
			CanGoPrev: snapshot.Navigation.CanGoPrev,
			CanGoNext: snapshot.Navigation.CanGoNext,
		},
		Running:    snapshot.Running,
		Submitting: snapshot.Submitting,
		LoadError:  snapshot.LoadError,
		Closed:     snapshot.Closed,
	}

	if prior := snapshot.PriorSubmission; prior != nil {
		response.PriorSubmission = &dto.SessionSubmissionResponse{
			ID:              prior.ID,
			Language:        string(prior.Language),
			Status:          string(prior.Status),
			Score:           prior.Score,
			TestCasesPassed: prior.TestCasesPassed,
			TotalTestCases:  prior.TotalTestCases,
			SubmittedAt:     prior.SubmittedAt,
		}
	}

	return response
}

func verdictResponse(verdict *session.Verdict) *dto.SessionVerdictResponse {
	if verdict == nil {
		return nil
	}

	cases := make([]dto.SessionCaseResponse, 0, len(verdict.Cases))
	for _, c := range verdict.VisibleCases() {
		cases = append(cases, dto.SessionCaseResponse{TestCase: c.Number, Status: c.Status})
	}

	return &dto.SessionVerdictResponse{
		Mode:            string(verdict.Mode),
		Status:          string(verdict.Status),
		Score:           verdict.Score,
		TestCasesPassed: verdict.TestCasesPassed,
		TotalTestCases:  verdict.TotalTestCases,
		TimeConsumedMs:  verdict.TimeConsumedMs,
		ErrorMessage:    verdict.ErrorMessage,
		Cases:           cases,
		HiddenCases:     verdict.HiddenCount(),
		Persisted:       verdict.Persisted(),
	}
}
