package nest

import "fmt"

// Shift is the single primitive every structural mutation is expressed in:
// add Amount to every left/right boundary at or beyond Threshold. With
// Inclusive set, boundaries equal to Threshold shift too; otherwise only
// boundaries strictly beyond it. Detached rows (negative boundaries) are
// never shifted.
type Shift struct {
	Threshold int64
	Amount    int64
	Inclusive bool
}

// Apply returns the boundary pair after the shift. Each column is tested
// independently; since left < right always holds, this matches selecting
// rows by right and conditionally updating left.
func (s Shift) Apply(left, right int64) (int64, int64) {
	if left < 0 {
		return left, right
	}
	if s.Inclusive {
		if left >= s.Threshold {
			left += s.Amount
		}
		if right >= s.Threshold {
			right += s.Amount
		}
		return left, right
	}
	if left > s.Threshold {
		left += s.Amount
	}
	if right > s.Threshold {
		right += s.Amount
	}
	return left, right
}

// InsertPlan places a new leaf at (Left, Right) after Shift has opened a
// two-wide gap for it.
type InsertPlan struct {
	Left  int64
	Right int64
	Shift Shift
}

// DeletePlan removes every row whose boundaries lie inside [Left, Right]
// and closes the gap with Shift.
type DeletePlan struct {
	Left  int64
	Right int64
	Shift Shift
}

// MovePlan relocates the subtree [SubtreeLeft, SubtreeRight] in three
// phases: detach (negate the subtree's boundaries so later shifts skip
// them), Close the gap at the origin, Open a gap at the destination, then
// reattach each detached boundary b as -b - Distance.
type MovePlan struct {
	SubtreeLeft  int64
	SubtreeRight int64
	Close        Shift
	Open         Shift
	Distance     int64
}

// checkSpan validates a stored boundary pair: positive, ordered, and of
// even width.
func checkSpan(left, right int64) error {
	if left < 1 || right <= left || (right-left)%2 == 0 {
		return fmt.Errorf("%w: span (%d, %d)", ErrInvalidState, left, right)
	}
	return nil
}

// checkRoom verifies that growing the forest by two boundary values stays
// representable.
func checkRoom(maxRight, maxBoundary int64) error {
	if maxRight+2 > maxBoundary {
		return fmt.Errorf("%w: forest at %d, limit %d", ErrBoundaryOverflow, maxRight, maxBoundary)
	}
	return nil
}

// PlanRoot computes the boundary pair for a new root. With stride 0 the
// root is appended densely after the current rightmost boundary; with a
// positive stride it starts at the next stride multiple.
func PlanRoot(maxRight, stride, maxBoundary int64) (left, right int64, err error) {
	if maxRight < 0 {
		return 0, 0, fmt.Errorf("%w: max right %d", ErrInvalidState, maxRight)
	}
	base := maxRight
	if stride > 0 {
		base = (maxRight + stride - 1) / stride * stride
	}
	if base+2 > maxBoundary || base < 0 {
		return 0, 0, fmt.Errorf("%w: root offset %d, limit %d", ErrBoundaryOverflow, base, maxBoundary)
	}
	return base + 1, base + 2, nil
}

// PlanInsertChild appends a new leaf as the last child of the parent. The
// new node takes over the parent's right boundary position and everything
// at or beyond it, the parent's right included, moves up by two.
func PlanInsertChild(parentLeft, parentRight, maxRight, maxBoundary int64) (InsertPlan, error) {
	if err := checkSpan(parentLeft, parentRight); err != nil {
		return InsertPlan{}, err
	}
	if err := checkRoom(maxRight, maxBoundary); err != nil {
		return InsertPlan{}, err
	}
	return InsertPlan{
		Left:  parentRight,
		Right: parentRight + 1,
		Shift: Shift{Threshold: parentRight, Amount: 2, Inclusive: true},
	}, nil
}

// PlanInsertFirstChild inserts a new leaf as the first child of the parent,
// right after the parent's left boundary.
func PlanInsertFirstChild(parentLeft, parentRight, maxRight, maxBoundary int64) (InsertPlan, error) {
	if err := checkSpan(parentLeft, parentRight); err != nil {
		return InsertPlan{}, err
	}
	if err := checkRoom(maxRight, maxBoundary); err != nil {
		return InsertPlan{}, err
	}
	return InsertPlan{
		Left:  parentLeft + 1,
		Right: parentLeft + 2,
		Shift: Shift{Threshold: parentLeft + 1, Amount: 2, Inclusive: true},
	}, nil
}

// PlanInsertSiblingAfter inserts a new leaf immediately after the sibling.
// The sibling itself stays put: only boundaries strictly beyond its right
// boundary shift.
func PlanInsertSiblingAfter(siblingLeft, siblingRight, maxRight, maxBoundary int64) (InsertPlan, error) {
	if err := checkSpan(siblingLeft, siblingRight); err != nil {
		return InsertPlan{}, err
	}
	if err := checkRoom(maxRight, maxBoundary); err != nil {
		return InsertPlan{}, err
	}
	return InsertPlan{
		Left:  siblingRight + 1,
		Right: siblingRight + 2,
		Shift: Shift{Threshold: siblingRight, Amount: 2, Inclusive: false},
	}, nil
}

// PlanInsertSiblingBefore inserts a new leaf immediately before the
// sibling, which moves up by two along with everything after it.
func PlanInsertSiblingBefore(siblingLeft, siblingRight, maxRight, maxBoundary int64) (InsertPlan, error) {
	if err := checkSpan(siblingLeft, siblingRight); err != nil {
		return InsertPlan{}, err
	}
	if err := checkRoom(maxRight, maxBoundary); err != nil {
		return InsertPlan{}, err
	}
	return InsertPlan{
		Left:  siblingLeft,
		Right: siblingLeft + 1,
		Shift: Shift{Threshold: siblingLeft, Amount: 2, Inclusive: true},
	}, nil
}

// PlanDelete removes the node at (left, right) together with its whole
// subtree and closes the gap it occupied.
func PlanDelete(left, right int64) (DeletePlan, error) {
	if err := checkSpan(left, right); err != nil {
		return DeletePlan{}, err
	}
	width := right - left + 1
	return DeletePlan{
		Left:  left,
		Right: right,
		Shift: Shift{Threshold: right, Amount: -width, Inclusive: false},
	}, nil
}

// planMove builds the shared detach/close phases and computes the target's
// boundaries as they will stand once the origin gap is closed. The caller
// supplies the open phase from the adjusted boundaries.
func planMove(subLeft, subRight, targetLeft, targetRight int64) (plan MovePlan, adjLeft, adjRight int64, err error) {
	if err := checkSpan(subLeft, subRight); err != nil {
		return MovePlan{}, 0, 0, err
	}
	if err := checkSpan(targetLeft, targetRight); err != nil {
		return MovePlan{}, 0, 0, err
	}
	if targetLeft >= subLeft && targetRight <= subRight {
		return MovePlan{}, 0, 0, fmt.Errorf("%w: target (%d, %d) inside subtree (%d, %d)",
			ErrCycle, targetLeft, targetRight, subLeft, subRight)
	}
	width := subRight - subLeft + 1
	plan = MovePlan{
		SubtreeLeft:  subLeft,
		SubtreeRight: subRight,
		Close:        Shift{Threshold: subRight, Amount: -width, Inclusive: false},
	}
	adjLeft, adjRight = plan.Close.Apply(targetLeft, targetRight)
	return plan, adjLeft, adjRight, nil
}

// PlanMoveInside relocates the subtree to become the last child of the
// target. Rejects targets inside the subtree itself.
func PlanMoveInside(subLeft, subRight, targetLeft, targetRight int64) (MovePlan, error) {
	plan, _, adjRight, err := planMove(subLeft, subRight, targetLeft, targetRight)
	if err != nil {
		return MovePlan{}, err
	}
	width := subRight - subLeft + 1
	plan.Open = Shift{Threshold: adjRight, Amount: width, Inclusive: true}
	plan.Distance = subLeft - adjRight
	return plan, nil
}

// PlanMoveBefore relocates the subtree to sit immediately before the
// target, as its previous sibling.
func PlanMoveBefore(subLeft, subRight, targetLeft, targetRight int64) (MovePlan, error) {
	plan, adjLeft, _, err := planMove(subLeft, subRight, targetLeft, targetRight)
	if err != nil {
		return MovePlan{}, err
	}
	width := subRight - subLeft + 1
	plan.Open = Shift{Threshold: adjLeft, Amount: width, Inclusive: true}
	plan.Distance = subLeft - adjLeft
	return plan, nil
}

// PlanMoveAfter relocates the subtree to sit immediately after the target,
// as its next sibling.
func PlanMoveAfter(subLeft, subRight, targetLeft, targetRight int64) (MovePlan, error) {
	plan, _, adjRight, err := planMove(subLeft, subRight, targetLeft, targetRight)
	if err != nil {
		return MovePlan{}, err
	}
	width := subRight - subLeft + 1
	plan.Open = Shift{Threshold: adjRight, Amount: width, Inclusive: false}
	plan.Distance = subLeft - adjRight - 1
	return plan, nil
}
