package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"study-companion/models"
	"study-companion/store"
)

func strPtr(s string) *string { return &s }

func TestTodoSaveNormalizes(t *testing.T) {
	svc := NewTodoService(store.NewMemoryStore())
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	todos := []models.TodoItem{
		{ID: float64(1), Text: "read", Status: "Todo", StartDate: "2026-03-10", DueDate: "2026-03-12T18:00:00Z", CompletedAt: strPtr("2026-03-01T00:00:00Z")},
		{ID: "b", Text: "write", Status: models.TodoStatusDone},
		{ID: "c", Text: "old", Status: models.TodoStatusDone, CompletedAt: strPtr("2026-01-01T00:00:00Z")},
	}
	if err := svc.Save(ctx, "u1", todos); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the old done item hidden, got %+v", got)
	}
	if got[0].StartDate != "2026-03-10T00:00:00Z" || got[0].DueDate != "2026-03-12T18:00:00Z" || got[0].CompletedAt != nil {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].CompletedAt == nil || *got[1].CompletedAt != "2026-03-11T09:00:00Z" {
		t.Fatalf("second = %+v", got[1])
	}

	bad := []models.TodoItem{{ID: "x", Text: "x", Status: "Todo", DueDate: "next tuesday"}}
	if err := svc.Save(ctx, "u1", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTodoListCreatesEmpty(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewTodoService(s)
	ctx := context.Background()

	got, err := svc.List(ctx, "u1")
	if err != nil || len(got) != 0 {
		t.Fatalf("list = %v, %v", got, err)
	}
	if _, err := s.Get(ctx, store.TodoLists, "u1"); err != nil {
		t.Fatalf("empty list not stored: %v", err)
	}
}

func TestChatHistoryKeepsLastMessages(t *testing.T) {
	svc := NewChatHistoryService(store.NewMemoryStore())
	ctx := context.Background()

	msgs := make([]models.ChatMessage, 60)
	for i := range msgs {
		msgs[i] = models.ChatMessage{Role: "user", Content: string(rune('A' + i%26))}
	}
	msgs[59].Content = "last"
	if err := svc.Save(ctx, "u1", msgs); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != models.ChatHistoryLimit || got[len(got)-1].Content != "last" {
		t.Fatalf("got %d messages, last %+v", len(got), got[len(got)-1])
	}

	empty, err := svc.Get(ctx, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("missing history = %v, %v", empty, err)
	}
}
