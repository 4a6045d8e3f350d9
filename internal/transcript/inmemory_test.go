package transcript

import (
	"context"
	"testing"
)

func TestInMemoryStoreRecentReturnsChronologicalTail(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		if err := s.SaveTurn(ctx, Record{SessionID: "s1", Language: "de", Role: "user", Content: content}); err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}
	if err := s.SaveTurn(ctx, Record{SessionID: "other", Role: "user", Content: "elsewhere"}); err != nil {
		t.Fatalf("SaveTurn() error = %v", err)
	}

	got, err := s.Recent(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(got))
	}
	if got[0].Content != "two" || got[1].Content != "three" {
		t.Fatalf("Recent tail = [%q, %q], want [two, three]", got[0].Content, got[1].Content)
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Fatalf("SaveTurn should assign ID and CreatedAt")
	}
}

func TestInMemoryStoreRecentUnknownSession(t *testing.T) {
	s := NewInMemoryStore()
	got, err := s.Recent(context.Background(), "missing", 5)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if got != nil {
		t.Fatalf("Recent(missing) = %v, want nil", got)
	}
}
