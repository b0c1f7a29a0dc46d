// Package nest stores trees in a flat table using the nested-sets
// encoding: every node carries a (left, right) boundary pair, and a node's
// descendants are exactly the nodes whose boundaries fall strictly inside
// its own. Ancestor, descendant and path queries are single range reads;
// structural mutations renumber a contiguous span of boundaries.
//
// # Components
//
// The boundary allocator ([PlanInsertChild], [PlanInsertSiblingAfter],
// [PlanDelete], [PlanMoveInside] and their ordering variants) is pure: it
// turns current boundary state into a [Shift] plan, the single primitive
// "add an amount to every boundary at or beyond a threshold".
//
// [Tree] is the node-level façade built on the allocator. Each mutating
// operation runs inside one [Repository] transaction: it re-reads the
// boundaries it depends on, computes the plan, and applies the shift plus
// the single row write before committing. Partial shifts are never
// committed.
//
// # Storage
//
// The façade talks to storage only through the [Repository] port; this
// module ships a DynamoDB implementation (package dynamo) and an in-memory
// one (package memory). Consumers interact only through the façade and
// never read or write boundaries directly.
//
// # Errors
//
//   - [ErrNotFound] - referenced node does not exist or was deleted
//   - [ErrCycle] - move would place a node under its own descendant
//   - [ErrBoundaryOverflow] - a plan would exceed [Config.MaxBoundary]
//   - [ErrConflict] - concurrent mutation detected; retryable
//   - [ErrInvalidState] - stored boundaries violate the encoding
//
// # Concurrency
//
// The core spawns nothing and caches nothing: safety comes entirely from
// the repository's transaction guarantees. Two concurrent inserts under one
// parent would otherwise compute overlapping gaps and corrupt the tree, so
// implementations must serialize structural mutations per forest and report
// detected interleavings as [ErrConflict].
package nest
