//go:build integration

// Integration tests run the embedded migrations and every Postgres store
// against a throwaway container.
//
// Run with: go test -tags=integration -v ./internal/db/...
package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/onnwee/socialgraph/internal/db"
	"github.com/onnwee/socialgraph/internal/post"
	"github.com/onnwee/socialgraph/internal/relationship"
	"github.com/onnwee/socialgraph/internal/search"
	"github.com/onnwee/socialgraph/internal/story"
	"github.com/onnwee/socialgraph/internal/user"
	"github.com/onnwee/socialgraph/migrations"
)

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("socialgraph"),
		postgres.WithUsername("socialgraph"),
		postgres.WithPassword("socialgraph"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	conn, err := db.Open(ctx, dsn, db.PoolConfig{PingTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(ctx, conn, migrations.FS, nil); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// A second run must be a no-op.
	if err := db.Migrate(ctx, conn, migrations.FS, nil); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	return conn
}

func seedUsers(t *testing.T, dir *user.PostgresDirectory, users ...*user.User) {
	t.Helper()
	for _, u := range users {
		if err := dir.Create(context.Background(), u); err != nil {
			t.Fatalf("Create(%s) error = %v", u.ID, err)
		}
	}
}

func TestPostgres(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()
	dir := user.NewPostgresDirectory(conn, nil)

	seedUsers(t, dir,
		&user.User{ID: "u1", Username: "jo", Name: "Jo", Surname: "Park"},
		&user.User{ID: "u2", Username: "joseph", Name: "Joseph", Surname: "Smith"},
		&user.User{ID: "u3", Username: "john_s", Name: "John", Surname: "Smith"},
		&user.User{ID: "u4", Username: "ann_100%", Name: "Ann"},
	)

	t.Run("directory uniqueness", func(t *testing.T) {
		if err := dir.Create(ctx, &user.User{ID: "u1", Username: "other"}); !errors.Is(err, user.ErrUserExists) {
			t.Errorf("duplicate id error = %v", err)
		}
		if err := dir.Create(ctx, &user.User{ID: "u9", Username: "JO"}); !errors.Is(err, user.ErrUsernameTaken) {
			t.Errorf("duplicate username error = %v", err)
		}
		if _, err := dir.GetByID(ctx, "missing"); !errors.Is(err, user.ErrUserNotFound) {
			t.Errorf("missing user error = %v", err)
		}
	})

	t.Run("search ranks exact username first", func(t *testing.T) {
		ranker := search.NewRanker(dir)
		got := ranker.Search(ctx, "jo")
		if len(got) < 2 || got[0].ID != "u1" {
			t.Fatalf("Search(jo) = %+v", got)
		}
		if got := ranker.Search(ctx, "john smith"); len(got) == 0 || got[0].ID != "u3" {
			t.Errorf("Search(john smith) = %+v", got)
		}
	})

	t.Run("like wildcards are literal", func(t *testing.T) {
		got, err := dir.Search(ctx, user.Filter{{{Field: user.FieldUsername, Match: user.MatchContains, Term: "%"}}}, 15)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != "u4" {
			t.Errorf("Search(%%) = %+v", got)
		}
	})

	t.Run("profile update", func(t *testing.T) {
		u, err := dir.UpdateProfile(ctx, "u2", user.ProfileUpdate{City: "Berlin"})
		if err != nil {
			t.Fatalf("UpdateProfile() error = %v", err)
		}
		if u.City != "Berlin" || u.Name != "Joseph" {
			t.Errorf("updated user = %+v", u)
		}
	})

	t.Run("relationship graph", func(t *testing.T) {
		store := relationship.NewPostgresStore(conn.DB, nil)
		graph := relationship.NewGraph(store)

		state, err := graph.ToggleFollow(ctx, "u1", "u2")
		if err != nil || state != relationship.StateRequested {
			t.Fatalf("ToggleFollow = %v, %v", state, err)
		}
		changed, err := graph.AcceptRequest(ctx, "u2", "u1")
		if err != nil || !changed {
			t.Fatalf("AcceptRequest = %v, %v", changed, err)
		}
		if changed, _ := graph.AcceptRequest(ctx, "u2", "u1"); changed {
			t.Error("second accept should be a no-op")
		}

		followers, err := graph.Followers(ctx, "u2", 10)
		if err != nil || len(followers) != 1 || followers[0].FollowerID != "u1" {
			t.Errorf("Followers = %+v, %v", followers, err)
		}

		blocked, err := graph.ToggleBlock(ctx, "u2", "u1")
		if err != nil || !blocked {
			t.Fatalf("ToggleBlock = %v, %v", blocked, err)
		}
		st, err := graph.Status(ctx, "u1", "u2")
		if err != nil || !st.BlockedBy {
			t.Errorf("Status = %+v, %v", st, err)
		}
		if blocked, _ := graph.ToggleBlock(ctx, "u2", "u1"); blocked {
			t.Error("second block toggle should remove the block")
		}

		if _, err := graph.ToggleFollow(ctx, "u1", "ghost"); !errors.Is(err, relationship.ErrTargetNotFound) {
			t.Errorf("follow unknown user error = %v", err)
		}

		ids, err := store.FolloweeIDs(ctx, "u1")
		if err != nil || len(ids) != 1 || ids[0] != "u2" {
			t.Errorf("FolloweeIDs = %v, %v", ids, err)
		}
	})

	t.Run("posts", func(t *testing.T) {
		svc := post.NewService(post.NewPostgresStore(conn, nil), relationship.NewPostgresStore(conn.DB, nil))

		p, err := svc.Create(ctx, "u2", post.Draft{Description: "from u2"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := svc.Create(ctx, "u3", post.Draft{Description: "from u3"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := svc.Create(ctx, "ghost", post.Draft{Description: "x"}); !errors.Is(err, post.ErrAuthorNotFound) {
			t.Errorf("unknown author error = %v", err)
		}

		if liked, err := svc.ToggleLike(ctx, "u1", p.ID); err != nil || !liked {
			t.Fatalf("ToggleLike = %v, %v", liked, err)
		}
		if _, err := svc.ToggleLike(ctx, "u1", "missing"); !errors.Is(err, post.ErrPostNotFound) {
			t.Errorf("like missing post error = %v", err)
		}
		if _, err := svc.AddComment(ctx, "u1", p.ID, "hi"); err != nil {
			t.Fatalf("AddComment() error = %v", err)
		}
		if _, err := svc.AddComment(ctx, "u1", "missing", "hi"); !errors.Is(err, post.ErrPostNotFound) {
			t.Errorf("comment missing post error = %v", err)
		}

		feed, err := svc.Feed(ctx, "u1", 10)
		if err != nil || len(feed) != 1 || feed[0].ID != p.ID {
			t.Fatalf("Feed = %+v, %v", feed, err)
		}
		if feed[0].LikeCount != 1 || feed[0].CommentCount != 1 {
			t.Errorf("counts = %+v", feed[0])
		}

		if err := svc.Delete(ctx, "u1", p.ID); !errors.Is(err, post.ErrNotOwner) {
			t.Errorf("non-owner delete error = %v", err)
		}
		if err := svc.Delete(ctx, "u2", p.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if comments, err := svc.Comments(ctx, p.ID, 10); err != nil || len(comments) != 0 {
			t.Errorf("comments after delete = %+v, %v", comments, err)
		}
	})

	t.Run("stories", func(t *testing.T) {
		store := story.NewPostgresStore(conn, nil)
		svc := story.NewService(store, relationship.NewPostgresStore(conn.DB, nil), nil)

		first, err := svc.Post(ctx, "u2", "https://cdn.example.com/1.png")
		if err != nil {
			t.Fatalf("Post() error = %v", err)
		}
		second, err := svc.Post(ctx, "u2", "https://cdn.example.com/2.png")
		if err != nil {
			t.Fatalf("second Post() error = %v", err)
		}
		if first.ID == second.ID {
			t.Fatal("replacement must get a new id")
		}

		active, err := svc.Active(ctx, "u1")
		if err != nil || len(active) != 1 || active[0].ID != second.ID {
			t.Fatalf("Active = %+v, %v", active, err)
		}

		if _, err := svc.Post(ctx, "ghost", "https://cdn.example.com/x.png"); !errors.Is(err, story.ErrAuthorNotFound) {
			t.Errorf("unknown user error = %v", err)
		}

		deleted, err := store.DeleteExpired(ctx, time.Now().Add(story.Lifetime+time.Minute))
		if err != nil || deleted != 1 {
			t.Errorf("DeleteExpired = %d, %v", deleted, err)
		}
	})
}
