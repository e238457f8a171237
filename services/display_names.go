package services

import (
	"context"
	"errors"
	"log"

	lru "github.com/hashicorp/golang-lru"

	"study-companion/models"
	"study-companion/store"
)

// DisplayNameResolver looks up a user's username, caching hits. Used when a
// leaving connection did not announce a display name of its own.
type DisplayNameResolver struct {
	store store.Store
	cache *lru.Cache
}

func NewDisplayNameResolver(s store.Store, size int) *DisplayNameResolver {
	if size <= 0 {
		size = 128
	}
	cache, _ := lru.New(size)
	return &DisplayNameResolver{store: s, cache: cache}
}

// Resolve returns the stored username of uid, or "" when unknown.
func (r *DisplayNameResolver) Resolve(ctx context.Context, uid string) string {
	if uid == "" {
		return ""
	}
	if v, ok := r.cache.Get(uid); ok {
		return v.(string)
	}
	doc, err := r.store.Get(ctx, store.Users, uid)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[ROOM] display name lookup for %s failed: %v", uid, err)
		}
		return ""
	}
	var user models.UserDocument
	if err := store.Decode(doc, &user); err != nil || user.Username == "" {
		return ""
	}
	r.cache.Add(uid, user.Username)
	return user.Username
}

// Forget drops a cached name, e.g. after a user is deleted.
func (r *DisplayNameResolver) Forget(uid string) {
	r.cache.Remove(uid)
}
