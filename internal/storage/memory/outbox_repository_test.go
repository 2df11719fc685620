package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

func TestOutboxRepository_EnqueueAndPullInOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: "order", AggregateID: "1", EventType: "order.created"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", first)
	}
	second, _ := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: "order", AggregateID: "1", EventType: "order.item_added"})

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("expected enqueue order, got %+v", pending)
	}

	limited, _ := repo.PullPending(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository()

	old := time.Now().UTC().Add(-time.Minute)
	sent, _ := repo.Enqueue(ctx, domain.OutboxMessage{EventType: "a", CreatedAt: old})
	failed, _ := repo.Enqueue(ctx, domain.OutboxMessage{EventType: "b"})
	kept, _ := repo.Enqueue(ctx, domain.OutboxMessage{EventType: "c"})

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 3 || !stats.OldestPendingAt.Equal(old) {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(ctx, sent.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, failed.ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	pending := repo.AllPending()
	if len(pending) != 1 || pending[0].ID != kept.ID {
		t.Fatalf("expected only %s pending, got %+v", kept.ID, pending)
	}

	if err := repo.MarkSent(ctx, "missing"); !errors.Is(err, domain.ErrOutboxMessageNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
