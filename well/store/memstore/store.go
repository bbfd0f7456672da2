//Package memstore keeps the token pool in process memory while enforcing
//the same transactional discipline as the networked backends: rows claimed
//by a live scope are exclusive to it until the scope commits or rolls back.
//Conflicting claims fail fast, a selection never waits on rows held by
//another scope, it simply doesn't see them.
package memstore

import (
	"context"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/tokenwell/tokenwell/well"
)

//Store is an in-memory token pool
type Store struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]int64
	claims map[int64]struct{}
}

//New sets up an empty pool
func New() *Store {
	return &Store{
		rows:   make(map[int64]int64),
		claims: make(map[int64]struct{}),
	}
}

//Seed inserts values into the pool, assigning each a fresh row identity
func (s *Store) Seed(values ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range values {
		s.nextID++
		s.rows[s.nextID] = v
	}
}

//CountAvailable implements well.Store
func (s *Store) CountAvailable(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

//Begin implements well.Store
func (s *Store) Begin(ctx context.Context) (well.Tx, error) {
	return &Tx{
		store: s,
		held:  make(map[int64]struct{}),
	}, nil
}

//Tx is one transactional scope on the in-memory pool
type Tx struct {
	store   *Store
	held    map[int64]struct{}
	deletes []int64
	done    bool
}

//SelectForUpdate claims up to limit rows in uniform random order. Rows held
//by another live scope are invisible to the selection.
func (tx *Tx) SelectForUpdate(ctx context.Context, limit int) (tokens []*well.Token, err error) {
	if tx.done {
		return nil, errors.New("transaction has already ended")
	}

	if limit < 0 {
		return nil, errors.Errorf("invalid selection limit %d", limit)
	}

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	free := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		if _, held := s.claims[id]; held {
			continue
		}
		free = append(free, id)
	}

	rand.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	if limit < len(free) {
		free = free[:limit]
	}

	for _, id := range free {
		s.claims[id] = struct{}{}
		tx.held[id] = struct{}{}
		tokens = append(tokens, &well.Token{ID: id, Value: s.rows[id]})
	}

	return tokens, nil
}

//DeleteByIDs stages removals of rows claimed by this scope, they only take
//effect on Commit
func (tx *Tx) DeleteByIDs(ctx context.Context, ids []int64) error {
	if tx.done {
		return errors.New("transaction has already ended")
	}

	for _, id := range ids {
		if _, held := tx.held[id]; !held {
			return errors.Errorf("row %d is not claimed by this transaction", id)
		}
	}

	tx.deletes = append(tx.deletes, ids...)
	return nil
}

//Commit applies the staged removals and releases all claims
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return errors.New("transaction has already ended")
	}

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range tx.deletes {
		delete(s.rows, id)
	}

	tx.end()
	return nil
}

//Rollback discards staged removals and releases all claims, it is a no-op
//on an ended scope
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.end()
	return nil
}

//Release implements well.Tx, it is safe on every exit path
func (tx *Tx) Release() {
	_ = tx.Rollback(context.Background())
}

//end releases the claims, the store lock must be held
func (tx *Tx) end() {
	for id := range tx.held {
		delete(tx.store.claims, id)
	}

	tx.held = make(map[int64]struct{})
	tx.deletes = nil
	tx.done = true
}
