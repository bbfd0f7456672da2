package well

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//Allocator draws unique tokens from the shared pool. Each draw runs in one
//transactional scope: claim a random selection under exclusive row locks,
//remove the claimed rows, commit. Tokens handed out this way are gone from
//the pool forever, two draws can never return the same token.
type Allocator struct {
	store Store
	logs  *zap.Logger
}

//NewAllocator sets up an allocator on top of a transactional store
func NewAllocator(store Store, logs *zap.Logger) *Allocator {
	return &Allocator{store: store, logs: logs}
}

//Allocate removes n randomly chosen tokens from the pool and returns their
//values. It fails with ErrInvalidCount for n < 1 and ErrInsufficientSupply
//when the pool holds fewer than n tokens, in which case nothing is removed.
//Every failure path rolls the scope back, the pool only ever shrinks by
//exactly n on success.
func (a *Allocator) Allocate(ctx context.Context, n int) (values []int64, err error) {
	if n < 1 {
		return nil, ErrInvalidCount
	}

	tx, err := a.store.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}

	//release must run on every exit path to hand the session back
	defer tx.Release()

	tokens, err := tx.SelectForUpdate(ctx, n)
	if err != nil {
		a.rollback(ctx, tx)
		return nil, errors.Wrap(err, "failed to select tokens for update")
	}

	if len(tokens) < n {
		a.rollback(ctx, tx)
		return nil, ErrInsufficientSupply
	}

	ids := make([]int64, len(tokens))
	values = make([]int64, len(tokens))
	for i, tok := range tokens {
		ids[i] = tok.ID
		values[i] = tok.Value
	}

	if err = tx.DeleteByIDs(ctx, ids); err != nil {
		a.rollback(ctx, tx)
		return nil, errors.Wrap(err, "failed to delete selected tokens")
	}

	if err = tx.Commit(ctx); err != nil {
		a.rollback(ctx, tx)
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	a.logs.Info("allocated tokens", zap.Int("count", n))
	return values, nil
}

func (a *Allocator) rollback(ctx context.Context, tx Tx) {
	if err := tx.Rollback(ctx); err != nil {
		a.logs.Error("failed to roll back transaction", zap.Error(err))
	}
}
