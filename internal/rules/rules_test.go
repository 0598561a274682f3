package rules

import (
	"context"
	"math/rand"
	"testing"
)

func mustCreate(t *testing.T, s Store, condition, action string, enabled bool) int {
	t.Helper()
	id, err := s.Create(context.Background(), condition, action, enabled)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func assertContiguous(t *testing.T, rs []Rule) {
	t.Helper()
	for i, r := range rs {
		if r.ID != i+1 {
			t.Fatalf("rule at index %d has id %d, want %d (ids: %v)", i, r.ID, i+1, ids(rs))
		}
	}
}

func ids(rs []Rule) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestMemoryStore_CreateAssignsSequentialIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		id := mustCreate(t, s, "transaction_amount > 100", "flag", true)
		if id != i {
			t.Errorf("create %d assigned id %d", i, id)
		}
	}

	all, _ := s.List(ctx)
	assertContiguous(t, all)
}

func TestMemoryStore_ListActiveFiltersAndOrders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	mustCreate(t, s, "a > 1", "first", true)
	mustCreate(t, s, "b > 2", "disabled", false)
	mustCreate(t, s, "c > 3", "third", true)

	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active rules, want 2", len(active))
	}
	if active[0].Action != "first" || active[1].Action != "third" {
		t.Errorf("active rules out of order: %v, %v", active[0].Action, active[1].Action)
	}
	if active[0].ID >= active[1].ID {
		t.Errorf("active ids not ascending: %d, %d", active[0].ID, active[1].ID)
	}
}

func TestMemoryStore_DeleteRenumbersSurvivors(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, action := range []string{"one", "two", "three", "four"} {
		mustCreate(t, s, "x > 0", action, true)
	}

	if err := s.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	all, _ := s.List(ctx)
	if len(all) != 3 {
		t.Fatalf("got %d rules after delete, want 3", len(all))
	}
	assertContiguous(t, all)

	// Relative order of the survivors is preserved.
	want := []string{"one", "three", "four"}
	for i, r := range all {
		if r.Action != want[i] {
			t.Errorf("rule %d action = %q, want %q", r.ID, r.Action, want[i])
		}
	}
}

func TestMemoryStore_CreateAfterDeleteReusesCompactedID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	mustCreate(t, s, "x > 0", "one", true)
	mustCreate(t, s, "x > 0", "two", true)
	mustCreate(t, s, "x > 0", "three", true)

	_ = s.Delete(ctx, 1)
	id := mustCreate(t, s, "x > 0", "four", true)
	if id != 3 {
		t.Errorf("create after delete assigned id %d, want 3", id)
	}

	all, _ := s.List(ctx)
	assertContiguous(t, all)
}

func TestMemoryStore_UpdateDoesNotRenumber(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	mustCreate(t, s, "x > 0", "one", true)
	mustCreate(t, s, "x > 0", "two", true)

	if err := s.Update(ctx, 1, "y > 5", "updated", false); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, _ := s.List(ctx)
	assertContiguous(t, all)
	if all[0].Condition != "y > 5" || all[0].Enabled {
		t.Errorf("update not applied: %+v", all[0])
	}
	if all[1].Action != "two" {
		t.Errorf("update touched the wrong rule: %+v", all[1])
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Update(ctx, 1, "x > 0", "a", true); err != ErrRuleNotFound {
		t.Errorf("Update on empty store = %v, want ErrRuleNotFound", err)
	}
	if err := s.Delete(ctx, 1); err != ErrRuleNotFound {
		t.Errorf("Delete on empty store = %v, want ErrRuleNotFound", err)
	}

	mustCreate(t, s, "x > 0", "a", true)
	if err := s.Delete(ctx, 7); err != ErrRuleNotFound {
		t.Errorf("Delete absent id = %v, want ErrRuleNotFound", err)
	}
	if err := s.Delete(ctx, 0); err != ErrRuleNotFound {
		t.Errorf("Delete id 0 = %v, want ErrRuleNotFound", err)
	}
}

// The contiguous-id invariant must hold after any interleaving of mutations,
// not just the sequences above.
func TestMemoryStore_InvariantUnderRandomMutations(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	n := 0
	for i := 0; i < 500; i++ {
		switch op := rng.Intn(3); {
		case op == 0 || n == 0:
			mustCreate(t, s, "x > 0", "r", rng.Intn(2) == 0)
			n++
		case op == 1:
			if err := s.Update(ctx, rng.Intn(n)+1, "y < 1", "u", true); err != nil {
				t.Fatalf("Update: %v", err)
			}
		default:
			if err := s.Delete(ctx, rng.Intn(n)+1); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			n--
		}

		all, _ := s.List(ctx)
		if len(all) != n {
			t.Fatalf("step %d: %d rules, want %d", i, len(all), n)
		}
		assertContiguous(t, all)
	}
}
