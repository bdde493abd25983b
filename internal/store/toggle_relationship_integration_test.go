package store

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
)

func openTestStore(t *testing.T) (*PostgresStore, *sql.DB) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), db
}

func cleanupRelationships(t *testing.T, db *sql.DB) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(),
			`DELETE FROM relationships WHERE subject_id LIKE 'itest-%'`)
	})
}

func TestToggleRelationshipIsItsOwnInverse(t *testing.T) {
	store, db := openTestStore(t)
	cleanupRelationships(t, db)
	ctx := context.Background()

	subject, object := "itest-sub-inverse", "itest-obj-inverse"

	added, err := store.ToggleRelationship(ctx, "follow", subject, object)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !added {
		t.Fatal("first toggle of a missing pair must add it")
	}
	exists, err := store.RelationshipExists(ctx, "follow", subject, object)
	if err != nil {
		t.Fatalf("check after add: %v", err)
	}
	if !exists {
		t.Fatal("pair must exist after the add")
	}

	added, err = store.ToggleRelationship(ctx, "follow", subject, object)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if added {
		t.Fatal("second toggle must remove the pair")
	}
	exists, err = store.RelationshipExists(ctx, "follow", subject, object)
	if err != nil {
		t.Fatalf("check after remove: %v", err)
	}
	if exists {
		t.Fatal("pair must be gone after the remove")
	}
}

// TestToggleRelationshipConcurrentBurst hammers one pair from several
// goroutines. The unique constraint is the authority: no caller may see an
// error, and at most one row may remain.
func TestToggleRelationshipConcurrentBurst(t *testing.T) {
	store, db := openTestStore(t)
	cleanupRelationships(t, db)
	ctx := context.Background()

	subject, object := "itest-sub-burst", "itest-obj-burst"

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = store.ToggleRelationship(ctx, "favorite", subject, object)
		}(i)
	}
	wg.Wait()

	for slot, err := range errs {
		if err != nil {
			t.Fatalf("toggle %d surfaced an error: %v", slot, err)
		}
	}

	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM relationships WHERE kind='favorite' AND subject_id=$1 AND object_id=$2
	`, subject, object).Scan(&count)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count > 1 {
		t.Fatalf("expected at most one row after the burst, got %d", count)
	}

	// The engine converges: one more toggle flips whatever state the burst
	// settled on.
	before, err := store.RelationshipExists(ctx, "favorite", subject, object)
	if err != nil {
		t.Fatalf("check state: %v", err)
	}
	after, err := store.ToggleRelationship(ctx, "favorite", subject, object)
	if err != nil {
		t.Fatalf("converging toggle: %v", err)
	}
	if after == before {
		t.Fatalf("toggle must flip the state: before=%v after=%v", before, after)
	}
}
