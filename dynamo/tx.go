package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/jacentio/arbor/nest"
)

// forest is the consistent snapshot one transaction or view operates on.
type forest[T any] struct {
	rows        map[string]*row[T]
	metaVersion int64
	metaPresent bool
}

// row tracks one node and what the transaction did to it. version is the
// value observed at load; commit conditions every write on it.
type row[T any] struct {
	node     nest.Node[T]
	version  int64
	dirty    bool
	inserted bool
	deleted  bool
}

// txn serves both nest.View and nest.Tx over the loaded snapshot. All reads
// and writes are in-memory; the repository turns the recorded changes into
// one DynamoDB transaction at commit.
type txn[T any] struct {
	state *forest[T]
}

func (t *txn[T]) Get(ctx context.Context, id string) (*nest.Node[T], error) {
	rw, ok := t.state.rows[id]
	if !ok || rw.deleted || rw.node.Left < 0 {
		return nil, nest.ErrNotFound
	}
	node := rw.node
	return &node, nil
}

func (t *txn[T]) Ancestors(ctx context.Context, left, right int64) ([]*nest.Node[T], error) {
	return t.collect(func(n nest.Node[T]) bool {
		return n.Left < left && n.Right > right
	}), nil
}

func (t *txn[T]) Descendants(ctx context.Context, left, right int64) ([]*nest.Node[T], error) {
	return t.collect(func(n nest.Node[T]) bool {
		return n.Left > left && n.Right < right
	}), nil
}

func (t *txn[T]) All(ctx context.Context) ([]*nest.Node[T], error) {
	return t.collect(func(nest.Node[T]) bool { return true }), nil
}

// collect copies matching live rows ordered by left. Deleted and detached
// rows are invisible to reads.
func (t *txn[T]) collect(match func(nest.Node[T]) bool) []*nest.Node[T] {
	var out []*nest.Node[T]
	for _, rw := range t.state.rows {
		if rw.deleted || rw.node.Left < 0 {
			continue
		}
		if match(rw.node) {
			node := rw.node
			out = append(out, &node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Left < out[j].Left })
	return out
}

func (t *txn[T]) MaxRight(ctx context.Context) (int64, error) {
	var max int64
	for _, rw := range t.state.rows {
		if rw.deleted {
			continue
		}
		if rw.node.Right > max {
			max = rw.node.Right
		}
	}
	return max, nil
}

func (t *txn[T]) Insert(ctx context.Context, node *nest.Node[T]) error {
	if _, exists := t.state.rows[node.ID]; exists {
		return fmt.Errorf("arbor/dynamo: duplicate node id %q", node.ID)
	}
	t.state.rows[node.ID] = &row[T]{node: *node, inserted: true}
	return nil
}

func (t *txn[T]) DeleteRange(ctx context.Context, left, right int64) (int, error) {
	removed := 0
	for _, rw := range t.state.rows {
		if rw.deleted || rw.node.Left < 0 {
			continue
		}
		if rw.node.Left >= left && rw.node.Right <= right {
			rw.deleted = true
			removed++
		}
	}
	return removed, nil
}

func (t *txn[T]) Shift(ctx context.Context, shift nest.Shift) error {
	for _, rw := range t.state.rows {
		if rw.deleted {
			continue
		}
		l, r := shift.Apply(rw.node.Left, rw.node.Right)
		if l != rw.node.Left || r != rw.node.Right {
			rw.node.Left, rw.node.Right = l, r
			rw.dirty = true
		}
	}
	return nil
}

func (t *txn[T]) Detach(ctx context.Context, left, right int64) error {
	for _, rw := range t.state.rows {
		if rw.deleted || rw.node.Left < 0 {
			continue
		}
		if rw.node.Left >= left && rw.node.Right <= right {
			rw.node.Left, rw.node.Right = -rw.node.Left, -rw.node.Right
			rw.dirty = true
		}
	}
	return nil
}

func (t *txn[T]) Reattach(ctx context.Context, distance int64) error {
	for _, rw := range t.state.rows {
		if rw.deleted {
			continue
		}
		if rw.node.Left < 0 {
			rw.node.Left = -rw.node.Left - distance
			rw.node.Right = -rw.node.Right - distance
			rw.dirty = true
		}
	}
	return nil
}
