package story

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type staticFollowees map[string][]string

func (f staticFollowees) FolloweeIDs(ctx context.Context, followerID string) ([]string, error) {
	return append([]string(nil), f[followerID]...), nil
}

type failingFollowees struct{ err error }

func (f failingFollowees) FolloweeIDs(context.Context, string) ([]string, error) {
	return nil, f.err
}

// testClock is a settable clock.
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestService(followees Followees) (*Service, *InMemoryStore, *testClock) {
	store := NewInMemoryStore()
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(store, followees, discard)
	svc.timeNow = clock.Now
	var n int
	svc.newID = func() string {
		n++
		return "s" + strconv.Itoa(n)
	}
	return svc, store, clock
}

func TestService_PostReplacesStory(t *testing.T) {
	svc, store, clock := newTestService(staticFollowees{})
	ctx := context.Background()

	first, err := svc.Post(ctx, "alice", "https://cdn.example.com/1.png")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if !first.ExpiresAt.Equal(clock.now.Add(Lifetime)) {
		t.Errorf("ExpiresAt = %v, want %v", first.ExpiresAt, clock.now.Add(Lifetime))
	}

	clock.now = clock.now.Add(time.Hour)
	second, err := svc.Post(ctx, "alice", "https://cdn.example.com/2.png")
	if err != nil {
		t.Fatalf("second Post failed: %v", err)
	}

	if store.Len() != 1 {
		t.Errorf("stored stories = %d, want 1 per user", store.Len())
	}
	active, _ := svc.Active(ctx, "alice")
	if len(active) != 1 || active[0].ID != second.ID || active[0].Image != "https://cdn.example.com/2.png" {
		t.Errorf("Active = %+v, want only the replacement", active)
	}
}

func TestService_PostValidation(t *testing.T) {
	svc, _, _ := newTestService(staticFollowees{})
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		image  string
		want   error
	}{
		{"anonymous", "", "https://cdn.example.com/a.png", ErrUnauthenticated},
		{"empty image", "alice", "  ", ErrInvalidImage},
		{"private host", "alice", "http://localhost/a.png", ErrInvalidImage},
		{"not a url", "alice", "a.png", ErrInvalidImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Post(ctx, tt.userID, tt.image); !errors.Is(err, tt.want) {
				t.Errorf("Post error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestService_ActiveVisibility(t *testing.T) {
	svc, _, clock := newTestService(staticFollowees{"alice": {"bob", "carol"}})
	ctx := context.Background()

	start := clock.now
	for _, id := range []string{"carol", "bob", "dave", "alice"} {
		if _, err := svc.Post(ctx, id, "https://cdn.example.com/"+id+".png"); err != nil {
			t.Fatal(err)
		}
		clock.now = clock.now.Add(time.Hour)
	}

	active, err := svc.Active(ctx, "alice")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	var users []string
	for _, st := range active {
		users = append(users, st.UserID)
	}
	want := []string{"alice", "bob", "carol"}
	if len(users) != len(want) {
		t.Fatalf("Active users = %v, want %v", users, want)
	}
	for i := range want {
		if users[i] != want[i] {
			t.Errorf("Active[%d] = %s, want %s", i, users[i], want[i])
		}
	}

	// carol posted first and expires first.
	clock.now = start.Add(Lifetime)
	active, _ = svc.Active(ctx, "alice")
	for _, st := range active {
		if st.UserID == "carol" {
			t.Error("expired story still visible")
		}
	}
	if len(active) != 2 {
		t.Errorf("Active after expiry = %d stories, want 2", len(active))
	}

	if _, err := svc.Active(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestService_ActiveFolloweesError(t *testing.T) {
	boom := errors.New("db down")
	svc, _, _ := newTestService(failingFollowees{err: boom})

	if _, err := svc.Active(context.Background(), "alice"); !errors.Is(err, ErrStorage) || !errors.Is(err, boom) {
		t.Errorf("Active error = %v, want ErrStorage wrapping cause", err)
	}
}

func TestService_DeleteExpired(t *testing.T) {
	svc, store, clock := newTestService(staticFollowees{})
	ctx := context.Background()

	_, _ = svc.Post(ctx, "alice", "https://cdn.example.com/a.png")
	clock.now = clock.now.Add(2 * time.Hour)
	_, _ = svc.Post(ctx, "bob", "https://cdn.example.com/b.png")

	clock.now = clock.now.Add(Lifetime - time.Hour)
	deleted, err := svc.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 1 || store.Len() != 1 {
		t.Errorf("deleted = %d, remaining = %d, want 1 and 1", deleted, store.Len())
	}
}

func TestService_RunPeriodicCleanup(t *testing.T) {
	svc, store, clock := newTestService(staticFollowees{})
	_, _ = svc.Post(context.Background(), "alice", "https://cdn.example.com/a.png")
	clock.now = clock.now.Add(Lifetime)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunPeriodicCleanup(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(time.Second)
	for store.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("expired story was not cleaned up")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop after cancel")
	}
}
