package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pocketbase/pocketbase/core"
)

type txKey struct{}

type txState struct {
	app         core.App
	afterCommit []func()
}

// withTx runs fn in a transaction unless ctx already carries one, in which
// case fn joins it. Hooks queued with afterCommit run once the outermost
// transaction commits.
func withTx(ctx context.Context, app core.App, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	state := &txState{}
	err := app.RunInTransaction(func(txApp core.App) error {
		state.app = txApp
		return fn(context.WithValue(ctx, txKey{}, state))
	})
	if err != nil {
		return err
	}

	for _, hook := range state.afterCommit {
		hook()
	}
	return nil
}

func txFromContext(ctx context.Context) *txState {
	state, _ := ctx.Value(txKey{}).(*txState)
	return state
}

// appFor returns the transactional app bound to ctx, or app.
func appFor(ctx context.Context, app core.App) core.App {
	if state := txFromContext(ctx); state != nil {
		return state.app
	}
	return app
}

// afterCommit defers fn until the surrounding transaction commits, or runs
// it now outside of one.
func afterCommit(ctx context.Context, fn func()) {
	if state := txFromContext(ctx); state != nil {
		state.afterCommit = append(state.afterCommit, fn)
		return
	}
	fn()
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
