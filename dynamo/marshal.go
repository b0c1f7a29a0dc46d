package dynamo

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/nest"
)

// Attribute names of the forest table.
const (
	attrPK      = "pk"
	attrID      = "id"
	attrLeft    = "lft"
	attrRight   = "rgt"
	attrVersion = "version"
	attrValue   = "value"
)

// MetaRowID is the id of the per-forest serialization row. It is never a
// node id (node ids are UUIDs).
const MetaRowID = "~meta"

// ForestPK returns the partition key for a forest name.
func ForestPK(forest string) string {
	return "forest#" + forest
}

func rowKey(pk, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrID: &types.AttributeValueMemberS{Value: id},
	}
}

func numberValue(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

// marshalRow converts a node into a DynamoDB item carrying the given
// version. The caller's record is marshaled into the value attribute.
func marshalRow[T any](pk string, node nest.Node[T], version int64) (map[string]types.AttributeValue, error) {
	value, err := attributevalue.Marshal(node.Value)
	if err != nil {
		return nil, fmt.Errorf("marshal value for node %s: %w", node.ID, err)
	}
	return map[string]types.AttributeValue{
		attrPK:      &types.AttributeValueMemberS{Value: pk},
		attrID:      &types.AttributeValueMemberS{Value: node.ID},
		attrLeft:    numberValue(node.Left),
		attrRight:   numberValue(node.Right),
		attrVersion: numberValue(version),
		attrValue:   value,
	}, nil
}

// unmarshalRow converts a DynamoDB item back into a tracked row.
func unmarshalRow[T any](item map[string]types.AttributeValue) (*row[T], error) {
	id := stringAttr(item, attrID)
	if id == "" {
		return nil, fmt.Errorf("arbor/dynamo: item without id attribute")
	}

	left, ok := numberAttr(item, attrLeft)
	if !ok {
		return nil, fmt.Errorf("arbor/dynamo: node %s: missing %s attribute", id, attrLeft)
	}
	right, ok := numberAttr(item, attrRight)
	if !ok {
		return nil, fmt.Errorf("arbor/dynamo: node %s: missing %s attribute", id, attrRight)
	}
	version, _ := numberAttr(item, attrVersion)

	rw := &row[T]{
		node:    nest.Node[T]{ID: id, Left: left, Right: right},
		version: version,
	}
	if raw, exists := item[attrValue]; exists {
		if err := attributevalue.Unmarshal(raw, &rw.node.Value); err != nil {
			return nil, fmt.Errorf("unmarshal value for node %s: %w", id, err)
		}
	}
	return rw, nil
}

// stringAttr extracts a string attribute, or "" when absent.
func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// numberAttr extracts a number attribute.
func numberAttr(item map[string]types.AttributeValue, name string) (int64, bool) {
	v, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
