// Package dynamo provides a DynamoDB-backed nest.Repository.
//
// One forest lives in one partition: every row shares the partition key
// "forest#<name>" and is keyed by node id, so a single ConsistentRead Query
// snapshots the whole forest at transaction entry. All writes recorded by a
// transaction are committed as one TransactWriteItems call in which every
// item carries a condition on the version observed at load, and a dedicated
// meta row is version-bumped unconditionally on every mutation. Any
// interleaved mutation therefore cancels the transaction, which surfaces as
// nest.ErrConflict for the caller to retry.
//
// DynamoDB caps a transaction at 100 items; a structural mutation touching
// more rows than fit fails with ErrTxTooLarge before any write.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/nest"
)

// maxTransactItems is the DynamoDB TransactWriteItems ceiling.
const maxTransactItems = 100

// ErrTxTooLarge is returned when a mutation needs more writes than one
// DynamoDB transaction allows. The forest is left untouched.
var ErrTxTooLarge = errors.New("arbor/dynamo: mutation exceeds the DynamoDB transaction item limit")

// Config holds configuration for the Repository.
type Config struct {
	// TableName is the DynamoDB table holding the forest.
	// Default: "arbor_forest"
	TableName string

	// Forest names the partition this repository operates on. Distinct
	// forests in one table are fully independent.
	// Default: "default"
	Forest string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TableName: "arbor_forest",
		Forest:    "default",
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "arbor_forest"
	}
	if c.Forest == "" {
		c.Forest = "default"
	}
}

// Repository implements nest.Repository over one DynamoDB partition.
type Repository[T any] struct {
	client *dynamodb.Client
	config Config
}

// New creates a Repository instance.
func New[T any](client *dynamodb.Client, config Config) *Repository[T] {
	config.validate()
	return &Repository[T]{
		client: client,
		config: config,
	}
}

func (r *Repository[T]) pk() string {
	return ForestPK(r.config.Forest)
}

// Transact loads the forest with one consistent query, runs fn against the
// in-memory snapshot, and commits every recorded write in a single
// TransactWriteItems call. fn returning an error discards all writes.
func (r *Repository[T]) Transact(ctx context.Context, fn func(tx nest.Tx[T]) error) error {
	state, err := r.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(&txn[T]{state: state}); err != nil {
		return err
	}
	return r.commit(ctx, state)
}

// View loads the forest with one consistent query and runs fn against the
// snapshot. Nothing is written.
func (r *Repository[T]) View(ctx context.Context, fn func(v nest.View[T]) error) error {
	state, err := r.load(ctx)
	if err != nil {
		return err
	}
	return fn(&txn[T]{state: state})
}

// load snapshots the whole forest partition.
func (r *Repository[T]) load(ctx context.Context) (*forest[T], error) {
	state := &forest[T]{rows: make(map[string]*row[T])}

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.config.TableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: r.pk()},
		},
		ConsistentRead: aws.Bool(true),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("load forest: %w", err)
		}
		for _, item := range page.Items {
			if stringAttr(item, attrID) == MetaRowID {
				state.metaPresent = true
				state.metaVersion, _ = numberAttr(item, attrVersion)
				continue
			}
			rw, err := unmarshalRow[T](item)
			if err != nil {
				return nil, err
			}
			state.rows[rw.node.ID] = rw
		}
	}

	return state, nil
}

// commit writes every pending change as one transaction. Read-only
// transactions write nothing.
func (r *Repository[T]) commit(ctx context.Context, state *forest[T]) error {
	pk := r.pk()
	items := []types.TransactWriteItem{r.metaItem(state)}

	dirty := false
	for _, rw := range state.rows {
		switch {
		case rw.inserted && rw.deleted:
			// Born and gone within this transaction; nothing stored yet.
		case rw.deleted:
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName:           aws.String(r.config.TableName),
					Key:                 rowKey(pk, rw.node.ID),
					ConditionExpression: aws.String("#version = :v"),
					ExpressionAttributeNames: map[string]string{
						"#version": attrVersion,
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":v": numberValue(rw.version),
					},
				},
			})
			dirty = true
		case rw.inserted:
			item, err := marshalRow(pk, rw.node, 1)
			if err != nil {
				return err
			}
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{
					TableName:           aws.String(r.config.TableName),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			})
			dirty = true
		case rw.dirty:
			item, err := marshalRow(pk, rw.node, rw.version+1)
			if err != nil {
				return err
			}
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{
					TableName:           aws.String(r.config.TableName),
					Item:                item,
					ConditionExpression: aws.String("#version = :v"),
					ExpressionAttributeNames: map[string]string{
						"#version": attrVersion,
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":v": numberValue(rw.version),
					},
				},
			})
			dirty = true
		}
	}

	if !dirty {
		return nil
	}
	if len(items) > maxTransactItems {
		return fmt.Errorf("%w: %d items", ErrTxTooLarge, len(items))
	}

	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactError(err)
}

// metaItem bumps the forest's serialization token. Its version condition is
// what turns any interleaved mutation into a canceled transaction.
func (r *Repository[T]) metaItem(state *forest[T]) types.TransactWriteItem {
	pk := r.pk()
	if !state.metaPresent {
		return types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(r.config.TableName),
				Item: map[string]types.AttributeValue{
					attrPK:      &types.AttributeValueMemberS{Value: pk},
					attrID:      &types.AttributeValueMemberS{Value: MetaRowID},
					attrVersion: numberValue(1),
				},
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		}
	}
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(r.config.TableName),
			Key:                 rowKey(pk, MetaRowID),
			UpdateExpression:    aws.String("SET #version = #version + :one"),
			ConditionExpression: aws.String("#version = :v"),
			ExpressionAttributeNames: map[string]string{
				"#version": attrVersion,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one": numberValue(1),
				":v":   numberValue(state.metaVersion),
			},
		},
	}
}

// mapTransactError maps DynamoDB transaction failures onto the core error
// kinds. Condition failures and transaction conflicts both mean another
// writer got there first.
func mapTransactError(err error) error {
	if err == nil {
		return nil
	}

	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed", "TransactionConflict":
				return nest.ErrConflict
			}
		}
		return err
	}

	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return nest.ErrConflict
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nest.ErrConflict
	}

	return err
}
