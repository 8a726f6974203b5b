package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/PabloGalante/graphchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/graphchat/internal/domain"
)

func TestMessageStoreUnknownSession(t *testing.T) {
	store := memory.NewMessageStore()
	ctx := context.Background()

	msgs, err := store.GetMessagesBySession(ctx, "missing")
	if err != nil {
		t.Fatalf("GetMessagesBySession failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}

	n, err := store.CountMessages(ctx, "missing")
	if err != nil || n != 0 {
		t.Fatalf("expected count 0, got %d (%v)", n, err)
	}
}

func TestMessageStoreAppendAndSnapshot(t *testing.T) {
	store := memory.NewMessageStore()
	ctx := context.Background()

	user := &domain.Message{ID: "0", Content: "hi", Role: domain.RoleUser}
	ai := &domain.Message{ID: "1", Content: "hello", Role: domain.RoleAssistant, Name: "Assistant", Kind: domain.KindPlainMessage}
	if err := store.AppendMessages(ctx, "s", user, ai); err != nil {
		t.Fatalf("AppendMessages failed: %v", err)
	}

	snapshot, _ := store.GetMessagesBySession(ctx, "s")

	// Mutating the caller's value must not reach the store.
	user.Content = "changed"

	if err := store.AppendMessages(ctx, "s", &domain.Message{ID: "2", Content: "again", Role: domain.RoleUser}); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	if len(snapshot) != 2 {
		t.Fatalf("snapshot changed after append: %d messages", len(snapshot))
	}
	if snapshot[0].Content != "hi" || snapshot[1].Kind != domain.KindPlainMessage {
		t.Fatalf("unexpected snapshot: %+v %+v", snapshot[0], snapshot[1])
	}

	n, _ := store.CountMessages(ctx, "s")
	if n != 3 {
		t.Fatalf("expected 3 messages, got %d", n)
	}
}

func TestMessageStoreRejectsOutOfSequence(t *testing.T) {
	store := memory.NewMessageStore()
	ctx := context.Background()

	err := store.AppendMessages(ctx, "s", &domain.Message{ID: "1", Role: domain.RoleUser})
	if !errors.Is(err, domain.ErrSequenceConflict) {
		t.Fatalf("expected ErrSequenceConflict, got %v", err)
	}

	n, _ := store.CountMessages(ctx, "s")
	if n != 0 {
		t.Fatalf("rejected append must not write, got %d", n)
	}
}
