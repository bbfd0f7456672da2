package well_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tokenwell/tokenwell/well"
	"github.com/tokenwell/tokenwell/well/store/memstore"
)

func seededStore(values ...int64) *memstore.Store {
	store := memstore.New()
	store.Seed(values...)
	return store
}

func seq(n int64) (values []int64) {
	for v := int64(1); v <= n; v++ {
		values = append(values, v)
	}

	return values
}

func available(tb testing.TB, store well.Store) int64 {
	n, err := store.CountAvailable(context.Background())
	ok(tb, err)
	return n
}

func TestAllocateExactCount(t *testing.T) {
	store := seededStore(seq(10)...)
	alloc := well.NewAllocator(store, zap.NewNop())

	values, err := alloc.Allocate(context.Background(), 3)
	ok(t, err)
	assert(t, len(values) == 3, "expected 3 values, got %#v", values)

	seen := map[int64]struct{}{}
	for _, v := range values {
		assert(t, v >= 1 && v <= 10, "value %d was never in the pool", v)
		_, dup := seen[v]
		assert(t, !dup, "value %d was returned twice", v)
		seen[v] = struct{}{}
	}

	equals(t, int64(7), available(t, store))
}

func TestAllocateInvalidCount(t *testing.T) {
	store := seededStore(seq(10)...)
	alloc := well.NewAllocator(store, zap.NewNop())

	for _, n := range []int{0, -1, -100} {
		values, err := alloc.Allocate(context.Background(), n)
		equals(t, well.ErrInvalidCount, err)
		assert(t, values == nil, "no values expected for count %d, got %#v", n, values)
	}

	equals(t, int64(10), available(t, store))
}

func TestSequentialExhaustion(t *testing.T) {
	store := seededStore(seq(10)...)
	alloc := well.NewAllocator(store, zap.NewNop())

	seen := map[int64]struct{}{}
	for _, n := range []int{3, 2, 5} {
		values, err := alloc.Allocate(context.Background(), n)
		ok(t, err)
		assert(t, len(values) == n, "expected %d values, got %#v", n, values)

		for _, v := range values {
			_, dup := seen[v]
			assert(t, !dup, "value %d was handed out twice", v)
			seen[v] = struct{}{}
		}
	}

	equals(t, 10, len(seen))
	equals(t, int64(0), available(t, store))

	_, err := alloc.Allocate(context.Background(), 1)
	equals(t, well.ErrInsufficientSupply, err)
}

func TestInsufficientSupplyLeavesPoolUntouched(t *testing.T) {
	store := seededStore(seq(4)...)
	alloc := well.NewAllocator(store, zap.NewNop())

	_, err := alloc.Allocate(context.Background(), 5)
	equals(t, well.ErrInsufficientSupply, err)
	equals(t, int64(4), available(t, store))

	//the failed draw must have released its claims
	values, err := alloc.Allocate(context.Background(), 4)
	ok(t, err)
	equals(t, 4, len(values))
	equals(t, int64(0), available(t, store))
}

func TestConcurrentAllocationsAreDisjoint(t *testing.T) {
	store := seededStore(seq(10)...)
	alloc := well.NewAllocator(store, zap.NewNop())

	type result struct {
		values []int64
		err    error
	}

	results := make(chan result, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			values, err := alloc.Allocate(context.Background(), 5)
			results <- result{values: values, err: err}
		}()
	}

	wg.Wait()
	close(results)

	seen := map[int64]struct{}{}
	for res := range results {
		ok(t, res.err)
		equals(t, 5, len(res.values))
		for _, v := range res.values {
			_, dup := seen[v]
			assert(t, !dup, "value %d ended up in two results", v)
			seen[v] = struct{}{}
		}
	}

	equals(t, 10, len(seen))
	equals(t, int64(0), available(t, store))
}

func TestConcurrentOversubscription(t *testing.T) {
	store := seededStore(seq(10)...)
	alloc := well.NewAllocator(store, zap.NewNop())

	type result struct {
		values []int64
		err    error
	}

	results := make(chan result, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			values, err := alloc.Allocate(context.Background(), 5)
			results <- result{values: values, err: err}
		}()
	}

	wg.Wait()
	close(results)

	var won, lost int
	seen := map[int64]struct{}{}
	for res := range results {
		if res.err != nil {
			equals(t, well.ErrInsufficientSupply, res.err)
			lost++
			continue
		}

		won++
		equals(t, 5, len(res.values))
		for _, v := range res.values {
			_, dup := seen[v]
			assert(t, !dup, "value %d ended up in two results", v)
			seen[v] = struct{}{}
		}
	}

	equals(t, 2, won)
	equals(t, 1, lost)
	equals(t, 10, len(seen))
	equals(t, int64(0), available(t, store))
}

//failstore injects failures into the transactional scope to exercise the
//all-or-nothing discipline
type failstore struct {
	well.Store
	failDelete bool
	failCommit bool
}

func (s *failstore) Begin(ctx context.Context) (well.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	return &failtx{Tx: tx, store: s}, nil
}

type failtx struct {
	well.Tx
	store *failstore
}

func (tx *failtx) DeleteByIDs(ctx context.Context, ids []int64) error {
	if tx.store.failDelete {
		return errors.New("connection reset by peer")
	}

	return tx.Tx.DeleteByIDs(ctx, ids)
}

func (tx *failtx) Commit(ctx context.Context) error {
	if tx.store.failCommit {
		return errors.New("connection reset by peer")
	}

	return tx.Tx.Commit(ctx)
}

func TestDeleteFailureRollsBack(t *testing.T) {
	store := seededStore(seq(10)...)
	alloc := well.NewAllocator(&failstore{Store: store, failDelete: true}, zap.NewNop())

	_, err := alloc.Allocate(context.Background(), 3)
	assert(t, err != nil, "expected a storage failure")
	assert(t, err != well.ErrInsufficientSupply, "storage failure must not masquerade as a shortfall")
	equals(t, int64(10), available(t, store))

	//all claims must be released, a full draw on the raw store succeeds
	values, err := well.NewAllocator(store, zap.NewNop()).Allocate(context.Background(), 10)
	ok(t, err)
	equals(t, 10, len(values))
}

func TestCommitFailureRollsBack(t *testing.T) {
	store := seededStore(seq(10)...)
	alloc := well.NewAllocator(&failstore{Store: store, failCommit: true}, zap.NewNop())

	_, err := alloc.Allocate(context.Background(), 3)
	assert(t, err != nil, "expected a storage failure")
	equals(t, int64(10), available(t, store))

	values, err := well.NewAllocator(store, zap.NewNop()).Allocate(context.Background(), 10)
	ok(t, err)
	equals(t, 10, len(values))
}
