//Package dynamo implements the token pool on a DynamoDB table. DynamoDB has
//no row locks to hold across a scope, so exclusivity is enforced
//optimistically: the scope buffers its selection and applies all removals as
//a single conditional transact-write at commit time. A racing consumer
//cancels the whole transaction, the pool is never partially drained. The
//conflict policy is fail-on-conflict, callers see a storage failure instead
//of waiting.
package dynamo

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pkg/errors"

	"github.com/tokenwell/tokenwell/well"
)

//DB is our alias for the dynamo iface
type DB dynamodbiface.DynamoDBAPI

//Store is a DynamoDB backed token pool
type Store struct {
	db    DB
	table string
}

//item mirrors a token row in the table
type item struct {
	ID    int64 `dynamodbav:"id"`
	Value int64 `dynamodbav:"val"`
}

//New sets up a store on an existing tokens table
func New(db DB, table string) *Store {
	return &Store{db: db, table: table}
}

//genRowID generates a reasonably unique row identity
func genRowID() (int64, error) {
	idb := make([]byte, 8)
	if _, err := rand.Read(idb); err != nil {
		return 0, errors.Wrap(err, "failed to generate random id bytes")
	}

	return int64(binary.BigEndian.Uint64(idb) >> 1), nil
}

//Seed puts values into the pool under fresh row identities, it refuses to
//overwrite an existing row
func (s *Store) Seed(ctx context.Context, values ...int64) error {
	for _, v := range values {
		id, err := genRowID()
		if err != nil {
			return err
		}

		it, err := dynamodbattribute.MarshalMap(item{ID: id, Value: v})
		if err != nil {
			return errors.Wrap(err, "failed to marshal item map")
		}

		if _, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.table),
			ConditionExpression: aws.String("attribute_not_exists(id)"),
			Item:                it,
		}); err != nil {
			return errors.Wrap(err, "failed to put token item")
		}
	}

	return nil
}

//CountAvailable implements well.Store
func (s *Store) CountAvailable(ctx context.Context) (n int64, err error) {
	if err = s.db.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.table),
		Select:    aws.String(dynamodb.SelectCount),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		n += aws.Int64Value(page.Count)
		return true
	}); err != nil {
		return 0, errors.Wrap(err, "failed to scan token count")
	}

	return n, nil
}

//Begin implements well.Store
func (s *Store) Begin(ctx context.Context) (well.Tx, error) {
	return &Tx{store: s}, nil
}

//Tx is one transactional scope on the DynamoDB pool, nothing is written
//until Commit
type Tx struct {
	store   *Store
	held    map[int64]struct{}
	deletes []int64
	done    bool
}

//SelectForUpdate scans up to limit items from the table. The scan order
//approximates the uniform random policy through the table's hashed key
//distribution, disjointness of concurrent scopes comes from the conditional
//removal at commit, not from the selection.
func (tx *Tx) SelectForUpdate(ctx context.Context, limit int) (tokens []*well.Token, err error) {
	if tx.done {
		return nil, errors.New("transaction has already ended")
	}

	out, err := tx.store.db.ScanWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(tx.store.table),
		Limit:     aws.Int64(int64(limit)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan token items")
	}

	tx.held = make(map[int64]struct{}, len(out.Items))
	for _, attrs := range out.Items {
		it := item{}
		if err = dynamodbattribute.UnmarshalMap(attrs, &it); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal token item")
		}

		tx.held[it.ID] = struct{}{}
		tokens = append(tokens, &well.Token{ID: it.ID, Value: it.Value})
	}

	return tokens, nil
}

//DeleteByIDs stages removals of previously selected items
func (tx *Tx) DeleteByIDs(ctx context.Context, ids []int64) error {
	if tx.done {
		return errors.New("transaction has already ended")
	}

	for _, id := range ids {
		if _, held := tx.held[id]; !held {
			return errors.Errorf("item %d was not selected by this transaction", id)
		}
	}

	tx.deletes = append(tx.deletes, ids...)
	return nil
}

//Commit applies all staged removals as one transact-write, every delete is
//conditional on the item still existing so a racing consumer cancels the
//whole transaction
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return errors.New("transaction has already ended")
	}

	tx.done = true
	if len(tx.deletes) < 1 {
		return nil
	}

	//TransactWriteItems caps out at 100 items per call
	if len(tx.deletes) > 100 {
		return errors.Errorf("cannot remove %d items in one transaction, the limit is 100", len(tx.deletes))
	}

	items := make([]*dynamodb.TransactWriteItem, 0, len(tx.deletes))
	for _, id := range tx.deletes {
		pk, err := dynamodbattribute.MarshalMap(struct {
			ID int64 `dynamodbav:"id"`
		}{id})
		if err != nil {
			return errors.Wrap(err, "failed to marshal item key")
		}

		items = append(items, &dynamodb.TransactWriteItem{
			Delete: &dynamodb.Delete{
				TableName:           aws.String(tx.store.table),
				Key:                 pk,
				ConditionExpression: aws.String("attribute_exists(id)"),
			},
		})
	}

	if _, err := tx.store.db.TransactWriteItemsWithContext(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	}); err != nil {
		aerr, ok := err.(awserr.Error)
		if ok && aerr.Code() == dynamodb.ErrCodeTransactionCanceledException {
			return errors.Wrap(err, "transaction cancelled by a conflicting consumer")
		}

		return errors.Wrap(err, "failed to transact token removals")
	}

	return nil
}

//Rollback discards the staged work, nothing was written yet so there is
//nothing to undo
func (tx *Tx) Rollback(ctx context.Context) error {
	tx.held = nil
	tx.deletes = nil
	tx.done = true
	return nil
}

//Release implements well.Tx
func (tx *Tx) Release() {
	_ = tx.Rollback(context.Background())
}
