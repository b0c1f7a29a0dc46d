package nest

import "context"

// View is a consistent read snapshot of one forest. All result slices are
// ordered by left ascending, which is pre-order for descendant sets and
// root-to-parent order for ancestor sets.
type View[T any] interface {
	// Get fetches one node by primary key. Returns ErrNotFound if no such
	// node is attached.
	Get(ctx context.Context, id string) (*Node[T], error)

	// Ancestors returns every node whose interval strictly contains
	// (left, right).
	Ancestors(ctx context.Context, left, right int64) ([]*Node[T], error)

	// Descendants returns every node whose interval lies strictly inside
	// (left, right).
	Descendants(ctx context.Context, left, right int64) ([]*Node[T], error)

	// All returns every attached node in the forest.
	All(ctx context.Context) ([]*Node[T], error)
}

// Tx is a read-write unit of work. Boundary writes take effect within the
// transaction immediately (later reads in the same transaction observe
// them) and become durable only if the transaction commits.
type Tx[T any] interface {
	View[T]

	// MaxRight returns the largest right boundary in the forest, or 0 when
	// the forest is empty.
	MaxRight(ctx context.Context) (int64, error)

	// Insert writes one new row.
	Insert(ctx context.Context, node *Node[T]) error

	// DeleteRange removes every row whose boundaries lie inside
	// [left, right] and reports how many rows went.
	DeleteRange(ctx context.Context, left, right int64) (int, error)

	// Shift applies one boundary shift to every affected row.
	Shift(ctx context.Context, shift Shift) error

	// Detach negates the boundaries of every row inside [left, right] so
	// subsequent shifts pass over them.
	Detach(ctx context.Context, left, right int64) error

	// Reattach restores every detached row, rewriting each boundary b as
	// -b - distance.
	Reattach(ctx context.Context, distance int64) error
}

// Repository is the storage port the Tree façade runs against. One
// Repository holds one forest.
//
// Transact must be atomic: either every write performed by fn is committed,
// or none is. It must also serialize against concurrent Transact calls on
// the same forest well enough that fn always observes boundaries no
// committed transaction will still change; implementations that detect a
// violation after the fact report it as ErrConflict.
type Repository[T any] interface {
	Transact(ctx context.Context, fn func(tx Tx[T]) error) error
	View(ctx context.Context, fn func(v View[T]) error) error
}
