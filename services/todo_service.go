package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"study-companion/models"
	"study-companion/store"
)

// DoneRetention is how long completed to-dos stay visible.
const DoneRetention = 30 * 24 * time.Hour

var todoDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTodoDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range todoDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised date %q", ErrValidation, raw)
}

type TodoService struct {
	store store.Store
	now   func() time.Time
}

func NewTodoService(s store.Store) *TodoService {
	return &TodoService{store: s, now: time.Now}
}

// List returns the user's to-dos, hiding items finished more than
// DoneRetention ago. A missing list is created empty.
func (s *TodoService) List(ctx context.Context, uid string) ([]models.TodoItem, error) {
	doc, err := s.store.Get(ctx, store.TodoLists, uid)
	if errors.Is(err, store.ErrNotFound) {
		if err := s.store.Replace(ctx, store.TodoLists, uid, store.Document{"todos": []any{}}); err != nil {
			return nil, fmt.Errorf("%w: create todo list: %v", ErrStoreFailure, err)
		}
		return []models.TodoItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load todo list: %v", ErrStoreFailure, err)
	}
	var list models.TodoList
	if err := store.Decode(doc, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	cutoff := s.now().UTC().Add(-DoneRetention)
	out := make([]models.TodoItem, 0, len(list.Todos))
	for _, t := range list.Todos {
		if t.Status == models.TodoStatusDone && t.CompletedAt != nil {
			if done, err := parseTodoDate(*t.CompletedAt); err == nil && !done.After(cutoff) {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// Save replaces the user's list after normalizing dates and stamping or
// clearing completedAt according to status.
func (s *TodoService) Save(ctx context.Context, uid string, todos []models.TodoItem) error {
	now := s.now().UTC().Format(time.RFC3339)
	for i := range todos {
		t := &todos[i]
		if t.StartDate != "" {
			d, err := parseTodoDate(t.StartDate)
			if err != nil {
				return err
			}
			t.StartDate = d.Format(time.RFC3339)
		}
		if t.DueDate != "" {
			d, err := parseTodoDate(t.DueDate)
			if err != nil {
				return err
			}
			t.DueDate = d.Format(time.RFC3339)
		}
		switch {
		case t.Status != models.TodoStatusDone:
			t.CompletedAt = nil
		case t.CompletedAt == nil || *t.CompletedAt == "":
			stamp := now
			t.CompletedAt = &stamp
		}
	}
	if todos == nil {
		todos = []models.TodoItem{}
	}

	doc, err := store.Encode(models.TodoList{Todos: todos})
	if err != nil {
		return err
	}
	if err := s.store.Replace(ctx, store.TodoLists, uid, doc); err != nil {
		return fmt.Errorf("%w: save todo list: %v", ErrStoreFailure, err)
	}
	return nil
}
