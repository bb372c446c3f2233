package relationship

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryStore_RollbackOnError(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	// Seed a request that the failed unit will delete.
	if err := store.Atomically(ctx, "a", "b", func(tx Tx) error {
		_, err := tx.InsertRequest(ctx, "a", "b")
		return err
	}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := store.Atomically(ctx, "a", "b", func(tx Tx) error {
		if _, err := tx.DeleteRequest(ctx, "a", "b"); err != nil {
			return err
		}
		if _, err := tx.InsertFollow(ctx, "a", "b"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	follows, requests, _ := store.Counts()
	if follows != 0 || requests != 1 {
		t.Errorf("expected rollback to restore state, got follows=%d requests=%d", follows, requests)
	}
}

func TestInMemoryStore_ConditionalWrites(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	var first, second, removed, removedAgain bool
	_ = store.Atomically(ctx, "a", "b", func(tx Tx) error {
		first, _ = tx.InsertBlock(ctx, "a", "b")
		second, _ = tx.InsertBlock(ctx, "a", "b")
		removed, _ = tx.DeleteBlock(ctx, "a", "b")
		removedAgain, _ = tx.DeleteBlock(ctx, "a", "b")
		return nil
	})

	if !first || second {
		t.Errorf("insert: first=%v second=%v, want true/false", first, second)
	}
	if !removed || removedAgain {
		t.Errorf("delete: first=%v second=%v, want true/false", removed, removedAgain)
	}
}

func TestInMemoryStore_CanceledContext(t *testing.T) {
	store := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.Atomically(ctx, "a", "b", func(tx Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("unit of work should not run on a canceled context")
	}
}

func TestInMemoryStore_Lookup(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_ = store.Atomically(ctx, "a", "b", func(tx Tx) error {
		_, _ = tx.InsertFollow(ctx, "a", "b")
		_, _ = tx.InsertRequest(ctx, "b", "a")
		_, _ = tx.InsertBlock(ctx, "b", "a")
		return nil
	})

	snap, err := store.Lookup(ctx, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	want := Snapshot{Following: true, RequestedBy: true, BlockedBy: true}
	if snap != want {
		t.Errorf("Lookup(a, b) = %+v, want %+v", snap, want)
	}

	st := StatusFromSnapshot(snap)
	if st.Outgoing != StateFollowing || st.Incoming != StateRequested {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestInMemoryStore_ListOrderingAndLimit(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for _, follower := range []string{"u1", "u2", "u3", "u4"} {
		f := follower
		_ = store.Atomically(ctx, f, "star", func(tx Tx) error {
			_, err := tx.InsertFollow(ctx, f, "star")
			return err
		})
	}

	edges, err := store.ListFollowers(ctx, "star", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(edges))
	}
	for i, want := range []string{"u4", "u3", "u2"} {
		if edges[i].FollowerID != want {
			t.Errorf("edges[%d].FollowerID = %q, want %q", i, edges[i].FollowerID, want)
		}
	}

	following, _ := store.ListFollowing(ctx, "u1", 10)
	if len(following) != 1 || following[0].FollowingID != "star" {
		t.Errorf("unexpected following for u1: %+v", following)
	}
}

func TestInMemoryStore_FolloweeIDs(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for _, p := range [][2]string{{"alice", "carol"}, {"alice", "bob"}, {"bob", "alice"}} {
		if err := store.Atomically(ctx, p[0], p[1], func(tx Tx) error {
			_, err := tx.InsertFollow(ctx, p[0], p[1])
			return err
		}); err != nil {
			t.Fatal(err)
		}
	}
	// A pending request is not a followee.
	if err := store.Atomically(ctx, "alice", "dave", func(tx Tx) error {
		_, err := tx.InsertRequest(ctx, "alice", "dave")
		return err
	}); err != nil {
		t.Fatal(err)
	}

	got, err := store.FolloweeIDs(ctx, "alice")
	if err != nil {
		t.Fatalf("FolloweeIDs failed: %v", err)
	}
	if len(got) != 2 || got[0] != "bob" || got[1] != "carol" {
		t.Errorf("FolloweeIDs(alice) = %v, want [bob carol]", got)
	}

	none, _ := store.FolloweeIDs(ctx, "carol")
	if none == nil || len(none) != 0 {
		t.Errorf("FolloweeIDs(carol) = %#v, want empty slice", none)
	}
}
