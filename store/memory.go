package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps everything in process. Used for tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]map[string]Document
	messages map[string][]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]map[string]Document),
		messages: make(map[string][]Document),
	}
}

func messageKey(collection, parentID string) string {
	return collection + "/" + parentID
}

func clone(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	return Encode(doc)
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(doc)
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, fields Document) error {
	copied, err := clone(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection)
	existing, ok := coll[id]
	if !ok {
		coll[id] = copied
		return nil
	}
	for k, v := range copied {
		existing[k] = v
	}
	return nil
}

func (m *MemoryStore) Replace(ctx context.Context, collection, id string, doc Document) error {
	copied, err := clone(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collection(collection)[id] = copied
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[collection], id)
	delete(m.messages, messageKey(collection, id))
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, collection, field string, value any, limit int) ([]Snapshot, error) {
	want := fmt.Sprint(value)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Snapshot
	for _, id := range m.sortedIDs(collection) {
		doc := m.docs[collection][id]
		got, ok := lookup(doc, field)
		if !ok || fmt.Sprint(got) != want {
			continue
		}
		copied, err := clone(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot{ID: id, Data: copied})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) TopN(ctx context.Context, collection, field string, limit int) ([]Snapshot, error) {
	type scored struct {
		snap  Snapshot
		score float64
	}
	m.mu.RLock()
	var rows []scored
	for _, id := range m.sortedIDs(collection) {
		doc := m.docs[collection][id]
		raw, ok := lookup(doc, field)
		if !ok {
			continue
		}
		score, ok := numeric(raw)
		if !ok {
			continue
		}
		copied, err := clone(doc)
		if err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		rows = append(rows, scored{snap: Snapshot{ID: id, Data: copied}, score: score})
	}
	m.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].score > rows[j].score })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]Snapshot, len(rows))
	for i, r := range rows {
		out[i] = r.snap
	}
	return out, nil
}

func (m *MemoryStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Snapshot
	for _, id := range m.sortedIDs(collection) {
		copied, err := clone(m.docs[collection][id])
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot{ID: id, Data: copied})
	}
	return out, nil
}

func (m *MemoryStore) AddMessage(ctx context.Context, collection, parentID string, msg Document) error {
	copied, err := clone(msg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := messageKey(collection, parentID)
	m.messages[key] = append(m.messages[key], copied)
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, collection, parentID string) ([]Document, error) {
	m.mu.RLock()
	log := m.messages[messageKey(collection, parentID)]
	out := make([]Document, 0, len(log))
	for _, msg := range log {
		copied, err := clone(msg)
		if err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		out = append(out, copied)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return fmt.Sprint(out[i]["timestamp"]) < fmt.Sprint(out[j]["timestamp"])
	})
	return out, nil
}

func (m *MemoryStore) Close(ctx context.Context) error { return nil }

// collection must be called with mu held for writing.
func (m *MemoryStore) collection(name string) map[string]Document {
	coll, ok := m.docs[name]
	if !ok {
		coll = make(map[string]Document)
		m.docs[name] = coll
	}
	return coll
}

func (m *MemoryStore) sortedIDs(collection string) []string {
	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
