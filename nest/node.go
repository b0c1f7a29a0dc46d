package nest

// Node is one record of the forest, wrapping the caller's own record type
// with the boundary pair that encodes its position in the tree.
type Node[T any] struct {
	// ID is the opaque primary key, assigned when the node is attached and
	// stable for the node's lifetime.
	ID string

	// Left and Right are the boundary pair. A node's descendants are exactly
	// the nodes whose boundaries fall strictly inside (Left, Right).
	// Boundaries are managed by structural operations only; callers must
	// never edit them directly.
	Left  int64
	Right int64

	// Value is the caller's record.
	Value T

	// Children is populated by Tree.BuildTree and is nil otherwise.
	Children []*Node[T]
}

// Width returns the size of the node's boundary interval,
// Right - Left + 1, which is always twice the node count of its subtree.
func (n *Node[T]) Width() int64 {
	return n.Right - n.Left + 1
}

// SubtreeSize returns the number of nodes in the subtree rooted at n,
// including n itself.
func (n *Node[T]) SubtreeSize() int64 {
	return n.Width() / 2
}

// IsLeaf reports whether the node has no descendants.
func (n *Node[T]) IsLeaf() bool {
	return n.Right == n.Left+1
}

// IsAncestorOf reports whether n is an ancestor of other. With inclusive
// set, a node counts as its own ancestor.
func (n *Node[T]) IsAncestorOf(other *Node[T], inclusive bool) bool {
	if inclusive {
		return n.Left <= other.Left && other.Right <= n.Right
	}
	return n.Left < other.Left && other.Right < n.Right
}

// IsDescendantOf reports whether n is a descendant of other. With inclusive
// set, a node counts as its own descendant.
func (n *Node[T]) IsDescendantOf(other *Node[T], inclusive bool) bool {
	return other.IsAncestorOf(n, inclusive)
}
