// Package stream provides a DynamoDB Streams handler that audits forest
// invariants after mutations.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/dynamo"
	"github.com/jacentio/arbor/internal/check"
)

// Handler re-verifies the nested-sets invariants of every forest touched by
// a stream batch and logs violations. It never mutates data, so it is safe
// to run against production tables; a violation means a bug or an
// out-of-band write and warrants investigation.
type Handler struct {
	client *dynamodb.Client
	table  string
	logger *slog.Logger
}

// NewHandler creates a new audit handler for the given forest table.
func NewHandler(client *dynamodb.Client, table string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client: client,
		table:  table,
		logger: logger,
	}
}

// HandleAudit processes one DynamoDB stream batch. This function is
// designed to be used as an AWS Lambda handler.
func (h *Handler) HandleAudit(ctx context.Context, event events.DynamoDBEvent) error {
	for _, pk := range TouchedForests(event) {
		if err := h.auditForest(ctx, pk); err != nil {
			h.logger.Error("forest audit failed",
				"forest", pk,
				"error", err,
			)
			return err // Lambda retries the batch
		}
	}
	return nil
}

// auditForest snapshots one forest partition and verifies it.
func (h *Handler) auditForest(ctx context.Context, pk string) error {
	spans, err := h.loadSpans(ctx, pk)
	if err != nil {
		return fmt.Errorf("load forest %s: %w", pk, err)
	}

	violations := check.Verify(spans)
	if len(violations) == 0 {
		h.logger.Info("forest audit clean",
			"forest", pk,
			"nodes", len(spans),
		)
		return nil
	}

	for _, v := range violations {
		h.logger.Error("forest invariant violated",
			"forest", pk,
			"violation", v,
		)
	}
	return nil
}

// loadSpans reads every node row's boundary pair from the partition.
func (h *Handler) loadSpans(ctx context.Context, pk string) ([]check.Span, error) {
	var spans []check.Span

	paginator := dynamodb.NewQueryPaginator(h.client, &dynamodb.QueryInput{
		TableName:              aws.String(h.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ProjectionExpression: aws.String("id, lft, rgt"),
		ConsistentRead:       aws.Bool(true),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			id := itemString(item, "id")
			if id == dynamo.MetaRowID {
				continue
			}
			spans = append(spans, check.Span{
				ID:    id,
				Left:  itemNumber(item, "lft"),
				Right: itemNumber(item, "rgt"),
			})
		}
	}

	return spans, nil
}

// TouchedForests returns the distinct forest partition keys referenced by a
// stream batch, in first-seen order.
func TouchedForests(event events.DynamoDBEvent) []string {
	seen := make(map[string]bool)
	var out []string
	for _, record := range event.Records {
		pk := getStringAttr(record.Change.Keys, "pk")
		if pk == "" || seen[pk] {
			continue
		}
		seen[pk] = true
		out = append(out, pk)
	}
	return out
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

func itemString(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemNumber(item map[string]types.AttributeValue, name string) int64 {
	if v, ok := item[name].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.ParseInt(v.Value, 10, 64)
		return n
	}
	return 0
}
