//Package postgres implements the token pool on a PostgreSQL table using
//pessimistic row locks: selections run ORDER BY random() LIMIT n FOR UPDATE
//so every returned row is exclusively locked before anyone can read it
//again. The lock-wait policy is blocking, a scope that hits rows locked by
//another scope waits for them and skips rows deleted in the meantime.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/tokenwell/tokenwell/well"
)

//Store is a PostgreSQL backed token pool
type Store struct {
	pool *pgxpool.Pool
}

//New connects a pgx pool to the configured database
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create connection pool")
	}

	return &Store{pool: pool}, nil
}

//Setup creates the tokens table if it doesn't exist yet, it is meant for
//test and development harnesses
func (s *Store) Setup(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tokens (
			id BIGSERIAL PRIMARY KEY,
			value BIGINT NOT NULL
		)`)
	if err != nil {
		return errors.Wrap(err, "failed to create tokens table")
	}

	return nil
}

//Seed inserts values into the pool, row identities are assigned by the
//database
func (s *Store) Seed(ctx context.Context, values ...int64) error {
	b := &pgx.Batch{}
	for _, v := range values {
		b.Queue(`INSERT INTO tokens (value) VALUES ($1)`, v)
	}

	if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
		return errors.Wrap(err, "failed to insert token rows")
	}

	return nil
}

//CountAvailable implements well.Store
func (s *Store) CountAvailable(ctx context.Context) (n int64, err error) {
	if err = s.pool.QueryRow(ctx, `SELECT count(*) FROM tokens`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count token rows")
	}

	return n, nil
}

//Close releases all pooled connections
func (s *Store) Close() {
	s.pool.Close()
}

//Begin implements well.Store
func (s *Store) Begin(ctx context.Context) (well.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin pgx transaction")
	}

	return &Tx{tx: tx}, nil
}

//Tx is one transactional scope on the PostgreSQL pool
type Tx struct {
	tx pgx.Tx
}

//SelectForUpdate locks and returns up to limit rows in uniform random order
func (t *Tx) SelectForUpdate(ctx context.Context, limit int) (tokens []*well.Token, err error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, value FROM tokens
		ORDER BY random()
		LIMIT $1
		FOR UPDATE`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query token rows")
	}

	defer rows.Close()
	for rows.Next() {
		tok := &well.Token{}
		if err = rows.Scan(&tok.ID, &tok.Value); err != nil {
			return nil, errors.Wrap(err, "failed to scan token row")
		}

		tokens = append(tokens, tok)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read token rows")
	}

	return tokens, nil
}

//DeleteByIDs removes locked rows within the scope
func (t *Tx) DeleteByIDs(ctx context.Context, ids []int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM tokens WHERE id = ANY($1)`, ids)
	if err != nil {
		return errors.Wrap(err, "failed to delete token rows")
	}

	if int(tag.RowsAffected()) != len(ids) {
		return errors.Errorf("expected to delete %d rows, deleted %d", len(ids), tag.RowsAffected())
	}

	return nil
}

//Commit implements well.Tx
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit pgx transaction")
	}

	return nil
}

//Rollback implements well.Tx, it is a no-op on a scope that already ended
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return errors.Wrap(err, "failed to roll back pgx transaction")
	}

	return nil
}

//Release implements well.Tx, pgx returns the connection to the pool once
//the transaction ends so a rollback attempt is all that is needed
func (t *Tx) Release() {
	_ = t.tx.Rollback(context.Background())
}
