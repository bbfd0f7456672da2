package well

import "context"

//Tx is a single transactional scope against the token pool. All reads and
//writes through a Tx are atomic: they persist together on Commit or not at
//all. Rows returned by SelectForUpdate stay exclusive to this scope until
//the scope ends.
type Tx interface {
	//SelectForUpdate returns up to limit tokens in uniform random order and
	//claims each returned row exclusively for the lifetime of the scope. It
	//may return fewer rows than asked when the pool runs short.
	SelectForUpdate(ctx context.Context, limit int) ([]*Token, error)

	//DeleteByIDs marks rows previously claimed by this scope for removal
	DeleteByIDs(ctx context.Context, ids []int64) error

	//Commit durably persists the removals and ends the scope
	Commit(ctx context.Context) error

	//Rollback discards all staged work and ends the scope, it is a no-op on
	//a scope that already ended
	Rollback(ctx context.Context) error

	//Release returns the underlying session and is safe to call on every
	//exit path, including after Commit or Rollback
	Release()
}

//Store hands out transactional scopes over the shared token pool
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	//CountAvailable reports the current pool cardinality, it reads outside
	//any allocation scope
	CountAvailable(ctx context.Context) (int64, error)
}
