package services

import (
	"context"
	"errors"
	"fmt"

	"study-companion/models"
	"study-companion/store"
)

// ChatHistoryService stores the tutor conversation, newest ChatHistoryLimit
// messages only.
type ChatHistoryService struct {
	store store.Store
}

func NewChatHistoryService(s store.Store) *ChatHistoryService {
	return &ChatHistoryService{store: s}
}

func lastMessages(msgs []models.ChatMessage) []models.ChatMessage {
	if len(msgs) > models.ChatHistoryLimit {
		return msgs[len(msgs)-models.ChatHistoryLimit:]
	}
	return msgs
}

func (s *ChatHistoryService) Get(ctx context.Context, uid string) ([]models.ChatMessage, error) {
	doc, err := s.store.Get(ctx, store.ChatHistory, uid)
	if errors.Is(err, store.ErrNotFound) {
		return []models.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load chat history: %v", ErrStoreFailure, err)
	}
	var h models.ChatHistory
	if err := store.Decode(doc, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if h.Messages == nil {
		return []models.ChatMessage{}, nil
	}
	return lastMessages(h.Messages), nil
}

func (s *ChatHistoryService) Save(ctx context.Context, uid string, msgs []models.ChatMessage) error {
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	doc, err := store.Encode(models.ChatHistory{Messages: lastMessages(msgs)})
	if err != nil {
		return err
	}
	if err := s.store.Replace(ctx, store.ChatHistory, uid, doc); err != nil {
		return fmt.Errorf("%w: save chat history: %v", ErrStoreFailure, err)
	}
	return nil
}
