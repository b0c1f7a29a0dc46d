package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jacentio/arbor/memory"
	"github.com/jacentio/arbor/nest"
)

func seed(t *testing.T, repo *memory.Repository[string], nodes ...*nest.Node[string]) {
	t.Helper()
	err := repo.Transact(context.Background(), func(tx nest.Tx[string]) error {
		for _, n := range nodes {
			if err := tx.Insert(context.Background(), n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// forestRAB is R(1,6){A(2,3), B(4,5)}.
func forestRAB() []*nest.Node[string] {
	return []*nest.Node[string]{
		{ID: "r", Left: 1, Right: 6, Value: "R"},
		{ID: "a", Left: 2, Right: 3, Value: "A"},
		{ID: "b", Left: 4, Right: 5, Value: "B"},
	}
}

func TestTransact_RollbackOnError(t *testing.T) {
	repo := memory.New[string]()
	seed(t, repo, forestRAB()...)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.Transact(ctx, func(tx nest.Tx[string]) error {
		if err := tx.Insert(ctx, &nest.Node[string]{ID: "x", Left: 7, Right: 8, Value: "X"}); err != nil {
			return err
		}
		if err := tx.Shift(ctx, nest.Shift{Threshold: 1, Amount: 100, Inclusive: true}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	// Everything the failed transaction did is gone.
	err = repo.View(ctx, func(v nest.View[string]) error {
		if _, err := v.Get(ctx, "x"); !errors.Is(err, nest.ErrNotFound) {
			t.Errorf("inserted row survived rollback: %v", err)
		}
		r, err := v.Get(ctx, "r")
		if err != nil {
			return err
		}
		if r.Left != 1 || r.Right != 6 {
			t.Errorf("r = (%d, %d), want (1, 6)", r.Left, r.Right)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestTransact_InsertDuplicateID(t *testing.T) {
	repo := memory.New[string]()
	seed(t, repo, forestRAB()...)
	ctx := context.Background()

	err := repo.Transact(ctx, func(tx nest.Tx[string]) error {
		return tx.Insert(ctx, &nest.Node[string]{ID: "a", Left: 7, Right: 8})
	})
	if err == nil {
		t.Fatal("expected duplicate id to fail")
	}
}

func TestDeleteRange_CountsRows(t *testing.T) {
	repo := memory.New[string]()
	seed(t, repo,
		&nest.Node[string]{ID: "r", Left: 1, Right: 8, Value: "R"},
		&nest.Node[string]{ID: "a", Left: 2, Right: 5, Value: "A"},
		&nest.Node[string]{ID: "c", Left: 3, Right: 4, Value: "C"},
		&nest.Node[string]{ID: "b", Left: 6, Right: 7, Value: "B"},
	)
	ctx := context.Background()

	err := repo.Transact(ctx, func(tx nest.Tx[string]) error {
		removed, err := tx.DeleteRange(ctx, 2, 5)
		if err != nil {
			return err
		}
		if removed != 2 {
			t.Errorf("removed = %d, want 2", removed)
		}
		// Reads within the transaction observe the delete.
		if _, err := tx.Get(ctx, "a"); !errors.Is(err, nest.ErrNotFound) {
			t.Errorf("deleted row still visible: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
}

func TestDetach_HidesRowsUntilReattach(t *testing.T) {
	repo := memory.New[string]()
	seed(t, repo, forestRAB()...)
	ctx := context.Background()

	err := repo.Transact(ctx, func(tx nest.Tx[string]) error {
		if err := tx.Detach(ctx, 2, 3); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, "a"); !errors.Is(err, nest.ErrNotFound) {
			t.Errorf("detached row visible to Get: %v", err)
		}
		all, err := tx.All(ctx)
		if err != nil {
			return err
		}
		if len(all) != 2 {
			t.Errorf("All sees %d rows, want 2", len(all))
		}
		// A shift while detached passes over the hidden row.
		if err := tx.Shift(ctx, nest.Shift{Threshold: 1, Amount: 10, Inclusive: true}); err != nil {
			return err
		}
		// Reattach with distance -10 lands a at its shifted position.
		return tx.Reattach(ctx, -10)
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}

	err = repo.View(ctx, func(v nest.View[string]) error {
		a, err := v.Get(ctx, "a")
		if err != nil {
			return err
		}
		if a.Left != 12 || a.Right != 13 {
			t.Errorf("a = (%d, %d), want (12, 13)", a.Left, a.Right)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestView_OrderedByLeft(t *testing.T) {
	repo := memory.New[string]()
	seed(t, repo,
		&nest.Node[string]{ID: "b", Left: 4, Right: 5, Value: "B"},
		&nest.Node[string]{ID: "r", Left: 1, Right: 6, Value: "R"},
		&nest.Node[string]{ID: "a", Left: 2, Right: 3, Value: "A"},
	)
	ctx := context.Background()

	err := repo.View(ctx, func(v nest.View[string]) error {
		all, err := v.All(ctx)
		if err != nil {
			return err
		}
		var got []string
		for _, n := range all {
			got = append(got, n.ID)
		}
		if diff := cmp.Diff([]string{"r", "a", "b"}, got); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}

		descendants, err := v.Descendants(ctx, 1, 6)
		if err != nil {
			return err
		}
		if len(descendants) != 2 || descendants[0].ID != "a" || descendants[1].ID != "b" {
			t.Errorf("unexpected descendants of r: %v", descendants)
		}

		ancestors, err := v.Ancestors(ctx, 2, 3)
		if err != nil {
			return err
		}
		if len(ancestors) != 1 || ancestors[0].ID != "r" {
			t.Errorf("unexpected ancestors of a: %v", ancestors)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestMaxRight(t *testing.T) {
	repo := memory.New[string]()
	ctx := context.Background()

	err := repo.Transact(ctx, func(tx nest.Tx[string]) error {
		max, err := tx.MaxRight(ctx)
		if err != nil {
			return err
		}
		if max != 0 {
			t.Errorf("empty forest max right = %d, want 0", max)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}

	seed(t, repo, forestRAB()...)
	err = repo.Transact(ctx, func(tx nest.Tx[string]) error {
		max, err := tx.MaxRight(ctx)
		if err != nil {
			return err
		}
		if max != 6 {
			t.Errorf("max right = %d, want 6", max)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
}
