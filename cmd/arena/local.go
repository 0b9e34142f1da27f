package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/arena-go/internal/client"
	"github.com/noah-isme/arena-go/internal/service"
	"github.com/noah-isme/arena-go/internal/session"
)

var errNoToken = errors.New("a token is required: pass --token or set ARENA_TOKEN")

var errProblemNotFound = errors.New("problem not found")

// openLocal runs a session against the contest API inside this process and
// waits until the problem and the contest status have loaded.
func openLocal(ctx context.Context, problemID uint, language string) (*session.Controller, session.Snapshot, error) {
	if opts.token == "" {
		return nil, session.Snapshot{}, errNoToken
	}

	logger := newLogger()
	api, err := client.New(client.Config{BaseURL: opts.apiURL, Logger: logger})
	if err != nil {
		return nil, session.Snapshot{}, err
	}

	deps, err := service.NewContestAPIBackend(api, nil, 0, validator.New(), logger)(opts.token)
	if err != nil {
		return nil, session.Snapshot{}, err
	}

	cfg := session.Config{TickInterval: time.Second, Logger: logger}
	if language != "" {
		lang, err := session.ParseLanguage(language)
		if err != nil {
			return nil, session.Snapshot{}, err
		}
		cfg.DefaultLanguage = lang
	}

	controller := session.NewController(deps, cfg)
	snapshots, cancel := controller.Subscribe()
	defer cancel()

	if err := controller.Open(problemID); err != nil {
		controller.Close()
		return nil, session.Snapshot{}, err
	}

	snapshot, err := waitFor(ctx, controller, snapshots, loaded(problemID))
	if err != nil {
		controller.Close()
		return nil, snapshot, err
	}
	return controller, snapshot, nil
}

func loaded(problemID uint) func(session.Snapshot) bool {
	return func(s session.Snapshot) bool {
		return s.ProblemID == problemID && s.Problem != nil && s.Liveness.Known
	}
}

// settled reports whether waiting on the session can stop, and with what error.
// A deleted lock is terminal, so it never turns into done.
func settled(snapshot session.Snapshot, done func(session.Snapshot) bool) (bool, error) {
	switch {
	case snapshot.LoadError != "":
		return true, errors.New(snapshot.LoadError)
	case snapshot.Phase == session.PhaseLocked && snapshot.LockReason == session.LockDeleted:
		return true, errProblemNotFound
	case done(snapshot):
		return true, nil
	default:
		return false, nil
	}
}

// waitFor blocks until done holds for the session, the problem fails to load
// or is gone, or the timeout expires.
func waitFor(ctx context.Context, controller *session.Controller, snapshots <-chan session.Snapshot, done func(session.Snapshot) bool) (session.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	recheck := time.NewTicker(200 * time.Millisecond)
	defer recheck.Stop()

	snapshot := controller.Snapshot()
	for {
		if stop, err := settled(snapshot, done); stop {
			return snapshot, err
		}

		select {
		case next, ok := <-snapshots:
			if !ok {
				return snapshot, session.ErrSessionClosed
			}
			snapshot = next
		case <-recheck.C:
			snapshot = controller.Snapshot()
		case <-ctx.Done():
			return snapshot, fmt.Errorf("session did not load: %w", ctx.Err())
		}
	}
}
