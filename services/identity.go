package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"study-companion/store"
)

// IdentityProvider owns credentials. User profiles live separately in the
// users collection, keyed by the uid the provider hands out.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password string) (string, error)
	DeleteUser(ctx context.Context, uid string) error
	// LookupByEmail returns ErrNotFound when no identity uses the address.
	LookupByEmail(ctx context.Context, email string) (string, error)
	VerifyPassword(ctx context.Context, uid, password string) error
}

type identityRecord struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    string `json:"created_at"`
}

// LocalIdentityProvider keeps bcrypt hashes in the identities collection.
type LocalIdentityProvider struct {
	store store.Store
	cost  int
}

func NewLocalIdentityProvider(s store.Store) *LocalIdentityProvider {
	return &LocalIdentityProvider{store: s, cost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *LocalIdentityProvider) CreateUser(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if _, err := p.LookupByEmail(ctx, email); err == nil {
		return "", fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	uid := uuid.NewString()
	doc, err := store.Encode(identityRecord{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	if err := p.store.Replace(ctx, store.Identities, uid, doc); err != nil {
		return "", fmt.Errorf("%w: create identity: %v", ErrStoreFailure, err)
	}
	return uid, nil
}

func (p *LocalIdentityProvider) DeleteUser(ctx context.Context, uid string) error {
	if err := p.store.Delete(ctx, store.Identities, uid); err != nil {
		return fmt.Errorf("%w: delete identity %s: %v", ErrStoreFailure, uid, err)
	}
	return nil
}

func (p *LocalIdentityProvider) LookupByEmail(ctx context.Context, email string) (string, error) {
	snaps, err := p.store.Query(ctx, store.Identities, "email", normalizeEmail(email), 1)
	if err != nil {
		return "", fmt.Errorf("%w: lookup identity: %v", ErrStoreFailure, err)
	}
	if len(snaps) == 0 {
		return "", ErrNotFound
	}
	return snaps[0].ID, nil
}

func (p *LocalIdentityProvider) VerifyPassword(ctx context.Context, uid, password string) error {
	doc, err := p.store.Get(ctx, store.Identities, uid)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: no identity for %s", ErrUnauthorized, uid)
	}
	if err != nil {
		return fmt.Errorf("%w: load identity: %v", ErrStoreFailure, err)
	}
	var rec identityRecord
	if err := store.Decode(doc, &rec); err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("%w: wrong password", ErrUnauthorized)
	}
	return nil
}
