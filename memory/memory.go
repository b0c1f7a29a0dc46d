// Package memory provides an in-memory nest.Repository. It is the
// reference implementation of the storage port and the default backend for
// tests; all data is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jacentio/arbor/nest"
)

// Repository keeps one forest in a map. A single mutex fully serializes
// transactions, so nest.ErrConflict can never occur here; rollback restores
// a snapshot taken at transaction entry.
type Repository[T any] struct {
	mu   sync.RWMutex
	rows map[string]nest.Node[T]
}

// New creates an empty in-memory repository.
func New[T any]() *Repository[T] {
	return &Repository[T]{
		rows: make(map[string]nest.Node[T]),
	}
}

// Transact runs fn against the live row set under the write lock. On error
// the pre-transaction snapshot is restored.
func (r *Repository[T]) Transact(ctx context.Context, fn func(tx nest.Tx[T]) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]nest.Node[T], len(r.rows))
	for id, row := range r.rows {
		snapshot[id] = row
	}

	if err := fn(&txn[T]{rows: r.rows}); err != nil {
		r.rows = snapshot
		return err
	}
	return nil
}

// View runs fn under the read lock.
func (r *Repository[T]) View(ctx context.Context, fn func(v nest.View[T]) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(&txn[T]{rows: r.rows})
}

// txn serves both the read-only View and the read-write Tx interfaces over
// the repository's row map.
type txn[T any] struct {
	rows map[string]nest.Node[T]
}

func (t *txn[T]) Get(ctx context.Context, id string) (*nest.Node[T], error) {
	row, ok := t.rows[id]
	if !ok || row.Left < 0 {
		return nil, nest.ErrNotFound
	}
	return &row, nil
}

func (t *txn[T]) Ancestors(ctx context.Context, left, right int64) ([]*nest.Node[T], error) {
	return t.collect(func(row nest.Node[T]) bool {
		return row.Left < left && row.Right > right
	}), nil
}

func (t *txn[T]) Descendants(ctx context.Context, left, right int64) ([]*nest.Node[T], error) {
	return t.collect(func(row nest.Node[T]) bool {
		return row.Left > left && row.Right < right
	}), nil
}

func (t *txn[T]) All(ctx context.Context) ([]*nest.Node[T], error) {
	return t.collect(func(nest.Node[T]) bool { return true }), nil
}

// collect copies matching attached rows, ordered by left. Detached rows
// (mid-move, negative boundaries) are not visible to reads.
func (t *txn[T]) collect(match func(nest.Node[T]) bool) []*nest.Node[T] {
	var out []*nest.Node[T]
	for _, row := range t.rows {
		if row.Left > 0 && match(row) {
			row := row
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Left < out[j].Left })
	return out
}

func (t *txn[T]) MaxRight(ctx context.Context) (int64, error) {
	var max int64
	for _, row := range t.rows {
		if row.Right > max {
			max = row.Right
		}
	}
	return max, nil
}

func (t *txn[T]) Insert(ctx context.Context, node *nest.Node[T]) error {
	if _, exists := t.rows[node.ID]; exists {
		return fmt.Errorf("arbor/memory: duplicate node id %q", node.ID)
	}
	t.rows[node.ID] = *node
	return nil
}

func (t *txn[T]) DeleteRange(ctx context.Context, left, right int64) (int, error) {
	removed := 0
	for id, row := range t.rows {
		if row.Left >= left && row.Right <= right {
			delete(t.rows, id)
			removed++
		}
	}
	return removed, nil
}

func (t *txn[T]) Shift(ctx context.Context, shift nest.Shift) error {
	for id, row := range t.rows {
		row.Left, row.Right = shift.Apply(row.Left, row.Right)
		t.rows[id] = row
	}
	return nil
}

func (t *txn[T]) Detach(ctx context.Context, left, right int64) error {
	for id, row := range t.rows {
		if row.Left >= left && row.Right <= right {
			row.Left, row.Right = -row.Left, -row.Right
			t.rows[id] = row
		}
	}
	return nil
}

func (t *txn[T]) Reattach(ctx context.Context, distance int64) error {
	for id, row := range t.rows {
		if row.Left < 0 {
			row.Left = -row.Left - distance
			row.Right = -row.Right - distance
			t.rows[id] = row
		}
	}
	return nil
}
