package nest

import (
	"context"

	"github.com/google/uuid"
)

// Tree exposes node-level operations over one forest. Every structural
// mutation runs inside a single Repository transaction: it re-reads the
// boundaries it depends on, asks the allocator for a shift plan, and
// applies the plan plus the single row write before committing. Queries run
// against one consistent snapshot.
type Tree[T any] struct {
	repo   Repository[T]
	config Config
}

// New creates a Tree over the given repository.
func New[T any](repo Repository[T], config Config) *Tree[T] {
	config.validate()
	return &Tree[T]{
		repo:   repo,
		config: config,
	}
}

func newID() string {
	return uuid.NewString()
}

// CreateRoot attaches a new single-node tree to the forest. The first root
// of an empty forest gets boundaries (1, 2).
func (t *Tree[T]) CreateRoot(ctx context.Context, value T) (*Node[T], error) {
	var node *Node[T]
	err := t.repo.Transact(ctx, func(tx Tx[T]) error {
		maxRight, err := tx.MaxRight(ctx)
		if err != nil {
			return err
		}
		left, right, err := PlanRoot(maxRight, t.config.RootStride, t.config.MaxBoundary)
		if err != nil {
			return err
		}
		node = &Node[T]{ID: newID(), Left: left, Right: right, Value: value}
		return tx.Insert(ctx, node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// insert runs one leaf insertion: read the reference node fresh, plan the
// two-wide gap, shift, write the row.
func (t *Tree[T]) insert(ctx context.Context, refID string, value T,
	plan func(ref *Node[T], maxRight int64) (InsertPlan, error)) (*Node[T], error) {

	var node *Node[T]
	err := t.repo.Transact(ctx, func(tx Tx[T]) error {
		ref, err := tx.Get(ctx, refID)
		if err != nil {
			return err
		}
		maxRight, err := tx.MaxRight(ctx)
		if err != nil {
			return err
		}
		p, err := plan(ref, maxRight)
		if err != nil {
			return err
		}
		if err := tx.Shift(ctx, p.Shift); err != nil {
			return err
		}
		node = &Node[T]{ID: newID(), Left: p.Left, Right: p.Right, Value: value}
		return tx.Insert(ctx, node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// AddChild attaches a new node as the last child of the parent.
func (t *Tree[T]) AddChild(ctx context.Context, parentID string, value T) (*Node[T], error) {
	return t.insert(ctx, parentID, value, func(ref *Node[T], maxRight int64) (InsertPlan, error) {
		return PlanInsertChild(ref.Left, ref.Right, maxRight, t.config.MaxBoundary)
	})
}

// AddFirstChild attaches a new node as the first child of the parent.
func (t *Tree[T]) AddFirstChild(ctx context.Context, parentID string, value T) (*Node[T], error) {
	return t.insert(ctx, parentID, value, func(ref *Node[T], maxRight int64) (InsertPlan, error) {
		return PlanInsertFirstChild(ref.Left, ref.Right, maxRight, t.config.MaxBoundary)
	})
}

// AddSibling attaches a new node immediately after the given node, as its
// next sibling.
func (t *Tree[T]) AddSibling(ctx context.Context, siblingID string, value T) (*Node[T], error) {
	return t.insert(ctx, siblingID, value, func(ref *Node[T], maxRight int64) (InsertPlan, error) {
		return PlanInsertSiblingAfter(ref.Left, ref.Right, maxRight, t.config.MaxBoundary)
	})
}

// AddSiblingBefore attaches a new node immediately before the given node,
// as its previous sibling.
func (t *Tree[T]) AddSiblingBefore(ctx context.Context, siblingID string, value T) (*Node[T], error) {
	return t.insert(ctx, siblingID, value, func(ref *Node[T], maxRight int64) (InsertPlan, error) {
		return PlanInsertSiblingBefore(ref.Left, ref.Right, maxRight, t.config.MaxBoundary)
	})
}

// DeleteSubtree removes the node and its entire subtree from the forest and
// closes the gap. Returns the number of nodes removed.
func (t *Tree[T]) DeleteSubtree(ctx context.Context, id string) (int, error) {
	var removed int
	err := t.repo.Transact(ctx, func(tx Tx[T]) error {
		node, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		plan, err := PlanDelete(node.Left, node.Right)
		if err != nil {
			return err
		}
		removed, err = tx.DeleteRange(ctx, plan.Left, plan.Right)
		if err != nil {
			return err
		}
		return tx.Shift(ctx, plan.Shift)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// move runs one subtree relocation: detach the subtree, close the origin
// gap, open a gap at the destination, reattach the subtree into it.
func (t *Tree[T]) move(ctx context.Context, id, targetID string,
	plan func(sub, target *Node[T]) (MovePlan, error)) error {

	return t.repo.Transact(ctx, func(tx Tx[T]) error {
		sub, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		target, err := tx.Get(ctx, targetID)
		if err != nil {
			return err
		}
		p, err := plan(sub, target)
		if err != nil {
			return err
		}
		if err := tx.Detach(ctx, p.SubtreeLeft, p.SubtreeRight); err != nil {
			return err
		}
		if err := tx.Shift(ctx, p.Close); err != nil {
			return err
		}
		if err := tx.Shift(ctx, p.Open); err != nil {
			return err
		}
		return tx.Reattach(ctx, p.Distance)
	})
}

// MoveSubtree relocates the node and its subtree to become the last child
// of newParent. Moving a node under its own descendant fails with ErrCycle.
func (t *Tree[T]) MoveSubtree(ctx context.Context, id, newParentID string) error {
	return t.move(ctx, id, newParentID, func(sub, target *Node[T]) (MovePlan, error) {
		return PlanMoveInside(sub.Left, sub.Right, target.Left, target.Right)
	})
}

// MoveBefore relocates the node and its subtree to sit immediately before
// the target, as its previous sibling.
func (t *Tree[T]) MoveBefore(ctx context.Context, id, targetID string) error {
	return t.move(ctx, id, targetID, func(sub, target *Node[T]) (MovePlan, error) {
		return PlanMoveBefore(sub.Left, sub.Right, target.Left, target.Right)
	})
}

// MoveAfter relocates the node and its subtree to sit immediately after the
// target, as its next sibling.
func (t *Tree[T]) MoveAfter(ctx context.Context, id, targetID string) error {
	return t.move(ctx, id, targetID, func(sub, target *Node[T]) (MovePlan, error) {
		return PlanMoveAfter(sub.Left, sub.Right, target.Left, target.Right)
	})
}

// AncestorsOf returns the node's ancestors ordered root first.
func (t *Tree[T]) AncestorsOf(ctx context.Context, id string) ([]*Node[T], error) {
	var out []*Node[T]
	err := t.repo.View(ctx, func(v View[T]) error {
		node, err := v.Get(ctx, id)
		if err != nil {
			return err
		}
		out, err = v.Ancestors(ctx, node.Left, node.Right)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DescendantsOf returns the node's descendants in pre-order.
func (t *Tree[T]) DescendantsOf(ctx context.Context, id string) ([]*Node[T], error) {
	var out []*Node[T]
	err := t.repo.View(ctx, func(v View[T]) error {
		node, err := v.Get(ctx, id)
		if err != nil {
			return err
		}
		out, err = v.Descendants(ctx, node.Left, node.Right)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ChildrenOf returns the node's immediate children ordered left to right.
func (t *Tree[T]) ChildrenOf(ctx context.Context, id string) ([]*Node[T], error) {
	var out []*Node[T]
	err := t.repo.View(ctx, func(v View[T]) error {
		node, err := v.Get(ctx, id)
		if err != nil {
			return err
		}
		descendants, err := v.Descendants(ctx, node.Left, node.Right)
		if err != nil {
			return err
		}
		// A descendant is an immediate child exactly when its left boundary
		// continues where the previous child's interval ended.
		expected := node.Left + 1
		for _, d := range descendants {
			if d.Left == expected {
				out = append(out, d)
				expected = d.Right + 1
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DepthOf returns the number of ancestors of the node; roots have depth 0.
func (t *Tree[T]) DepthOf(ctx context.Context, id string) (int, error) {
	ancestors, err := t.AncestorsOf(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(ancestors), nil
}

// BuildTree returns the node with Children populated recursively from a
// single descendants read.
func (t *Tree[T]) BuildTree(ctx context.Context, id string) (*Node[T], error) {
	var root *Node[T]
	err := t.repo.View(ctx, func(v View[T]) error {
		node, err := v.Get(ctx, id)
		if err != nil {
			return err
		}
		descendants, err := v.Descendants(ctx, node.Left, node.Right)
		if err != nil {
			return err
		}
		root = stitch(node, descendants)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// stitch assembles Children slices from a pre-ordered descendant list. The
// stack holds the current root-to-node path; a descendant whose left
// boundary passes a stack entry's right boundary closes that entry.
func stitch[T any](root *Node[T], descendants []*Node[T]) *Node[T] {
	root.Children = nil
	stack := []*Node[T]{root}
	for _, d := range descendants {
		d.Children = nil
		parent := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for d.Left > parent.Right {
			parent = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
		parent.Children = append(parent.Children, d)
		stack = append(stack, parent, d)
	}
	return root
}

// Walk traverses the subtree rooted at id in pre-order, calling fn with
// each node and its depth relative to the walk root. Traversal stops on the
// first error from fn.
func (t *Tree[T]) Walk(ctx context.Context, id string, fn func(node *Node[T], depth int) error) error {
	root, err := t.BuildTree(ctx, id)
	if err != nil {
		return err
	}
	return walk(root, 0, fn)
}

func walk[T any](node *Node[T], depth int, fn func(node *Node[T], depth int) error) error {
	if err := fn(node, depth); err != nil {
		return err
	}
	for _, child := range node.Children {
		if err := walk(child, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}
