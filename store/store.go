// Package store is the document-store adapter: named collections of JSON-shaped
// documents with shallow-merge writes, plus an ordered message log per document.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Collection names.
const (
	Users              = "users"
	Identities         = "identities"
	Rooms              = "rooms"
	TodoLists          = "todo_lists"
	ChatHistory        = "chat_history"
	GamificationConfig = "gamification_config"

	// SettingsDocID is the single document of GamificationConfig.
	SettingsDocID = "settings"
)

var ErrNotFound = errors.New("document not found")

// Document is a decoded JSON object. Numbers are float64.
type Document map[string]any

// Snapshot is a document together with its id.
type Snapshot struct {
	ID   string
	Data Document
}

// Store is implemented by the memory, MongoDB and Postgres backends.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set creates the document or merges fields into its top level.
	Set(ctx context.Context, collection, id string, fields Document) error
	// Replace overwrites the whole document.
	Replace(ctx context.Context, collection, id string, doc Document) error
	// Delete removes the document and its message log. Missing documents are not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query returns documents whose field (dotted path) equals value. limit <= 0 means no limit.
	Query(ctx context.Context, collection, field string, value any, limit int) ([]Snapshot, error)
	// TopN returns documents ordered by the numeric field (dotted path), descending.
	TopN(ctx context.Context, collection, field string, limit int) ([]Snapshot, error)
	List(ctx context.Context, collection string) ([]Snapshot, error)
	// AddMessage appends to the log of collection/parentID. msg must carry a "timestamp".
	AddMessage(ctx context.Context, collection, parentID string, msg Document) error
	// ListMessages returns the log ordered by timestamp.
	ListMessages(ctx context.Context, collection, parentID string) ([]Document, error)
	Close(ctx context.Context) error
}

// Encode turns a tagged struct into a Document.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode fills out from a Document.
func Decode(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Fields encodes v and keeps only the named top-level keys, for partial writes.
func Fields(v any, keys ...string) (Document, error) {
	doc, err := Encode(v)
	if err != nil {
		return nil, err
	}
	out := make(Document, len(keys))
	for _, k := range keys {
		if val, ok := doc[k]; ok {
			out[k] = val
		}
	}
	return out, nil
}

// lookup resolves a dotted path inside doc.
func lookup(doc Document, path string) (any, bool) {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			if d, isDoc := cur.(Document); isDoc {
				m = d
			} else {
				return nil, false
			}
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
