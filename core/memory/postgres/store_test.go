package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/aida/core/memory"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("AIDA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AIDA_TEST_POSTGRES_DSN not set")
	}

	store, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	userID := "test-" + uuid.NewString()
	t.Cleanup(func() { store.Clear(ctx, userID) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	entries := []memory.Entry{
		memory.NewConversationEntry(userID, "s1", "I love hiking in the mountains", "Nice!", now.Add(-time.Hour)),
		memory.NewConversationEntry(userID, "s1", "My sister lives in Split", "Good to know.", now),
		{UserID: userID, Text: "ancient", CreatedAt: now.Add(-60 * 24 * time.Hour)},
	}
	for _, entry := range entries {
		if err := store.Add(ctx, entry); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}
	}

	found, err := store.Search(ctx, userID, "hiking", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 || !strings.Contains(found[0].Text, "mountains") {
		t.Fatalf("unexpected search result %+v", found)
	}

	recent, _ := store.Search(ctx, userID, "", 1)
	if len(recent) != 1 || !strings.Contains(recent[0].Text, "Split") {
		t.Fatalf("expected the newest entry, got %+v", recent)
	}

	removed, err := store.Prune(ctx, userID, now.Add(-30*24*time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("expected one pruned entry, got %d (err=%v)", removed, err)
	}

	if err := store.Clear(ctx, userID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if left, _ := store.Search(ctx, userID, "", 10); len(left) != 0 {
		t.Fatalf("expected no entries after clear, got %d", len(left))
	}
}
