package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"

	"study-companion/models"
	"study-companion/store"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 32
)

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Session is an issued login.
type Session struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AuthService struct {
	store       store.Store
	identities  IdentityProvider
	tokens      *TokenManager
	sessionTTL  time.Duration
	realtimeTTL time.Duration
}

func NewAuthService(s store.Store, identities IdentityProvider, tokens *TokenManager, sessionTTL, realtimeTTL time.Duration) *AuthService {
	return &AuthService{
		store:       s,
		identities:  identities,
		tokens:      tokens,
		sessionTTL:  sessionTTL,
		realtimeTTL: realtimeTTL,
	}
}

var foldCase = cases.Fold()

// UsernameKey is the comparison form of a username: transliterated to ASCII
// and case folded, so "Zoë" and "zoe" collide.
func UsernameKey(username string) string {
	return foldCase.String(unidecode.Unidecode(strings.TrimSpace(username)))
}

func (r RegisterRequest) validate() error {
	if strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return fmt.Errorf("%w: all fields are required", ErrValidation)
	}
	if len([]rune(strings.TrimSpace(r.Username))) > maxUsernameLength {
		return fmt.Errorf("%w: username is longer than %d characters", ErrValidation, maxUsernameLength)
	}
	if !strings.Contains(r.Email, "@") {
		return fmt.Errorf("%w: email address is invalid", ErrValidation)
	}
	if r.Password != r.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}
	if len(r.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrValidation, minPasswordLength)
	}
	return nil
}

func (s *AuthService) findByUsername(ctx context.Context, username string) (store.Snapshot, error) {
	snaps, err := s.store.Query(ctx, store.Users, "usernameKey", UsernameKey(username), 1)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("%w: username lookup: %v", ErrStoreFailure, err)
	}
	if len(snaps) == 0 {
		return store.Snapshot{}, ErrNotFound
	}
	return snaps[0], nil
}

// Register creates the identity and then the user document. If the document
// cannot be saved the identity is deleted again.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	username := strings.TrimSpace(req.Username)

	if _, err := s.identities.LookupByEmail(ctx, req.Email); err == nil {
		return "", fmt.Errorf("%w: email address is already in use", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if _, err := s.findByUsername(ctx, username); err == nil {
		return "", fmt.Errorf("%w: username is already taken", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	uid, err := s.identities.CreateUser(ctx, req.Email, req.Password)
	if err != nil {
		return "", err
	}

	user := models.UserDocument{
		Username:    username,
		UsernameKey: UsernameKey(username),
		Email:       normalizeEmail(req.Email),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Progress:    models.NewUserProgress(),
	}
	user.Normalize(uid)
	doc, err := store.Encode(user)
	if err == nil {
		err = s.store.Replace(ctx, store.Users, uid, doc)
	}
	if err != nil {
		if rbErr := s.identities.DeleteUser(ctx, uid); rbErr != nil {
			log.Printf("❌ [AUTH] %v: identity %s left behind after failed profile save: %v", ErrPartialRollback, uid, rbErr)
		} else {
			log.Printf("[AUTH] rolled back identity %s after failed profile save", uid)
		}
		return "", fmt.Errorf("%w: save user profile: %v", ErrStoreFailure, err)
	}

	log.Printf("✅ [AUTH] registered %s as %s", username, uid)
	return uid, nil
}

// Login checks a username/password pair and issues a session token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (Session, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return Session{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	snap, err := s.findByUsername(ctx, req.Username)
	if errors.Is(err, ErrNotFound) {
		log.Printf("[AUTH] login for unknown username %q", req.Username)
		return Session{}, fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	}
	if err != nil {
		return Session{}, err
	}
	if err := s.identities.VerifyPassword(ctx, snap.ID, req.Password); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			log.Printf("[AUTH] wrong password for %s", snap.ID)
			return Session{}, fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
		}
		return Session{}, err
	}

	var user models.UserDocument
	if err := store.Decode(snap.Data, &user); err != nil {
		return Session{}, err
	}
	return s.issue(snap.ID, user.Username)
}

func (s *AuthService) issue(uid, username string) (Session, error) {
	token, err := s.tokens.GenerateToken(uid, username, PurposeSession, s.sessionTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:    uid,
		Username:  username,
		Token:     token,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}, nil
}

// Authenticate resolves a session token.
func (s *AuthService) Authenticate(token string) (*Claims, error) {
	return s.tokens.ParseToken(token, PurposeSession)
}

// RealtimeToken issues the short-lived credential the websocket upgrade expects.
func (s *AuthService) RealtimeToken(uid, username string) (string, time.Time, error) {
	token, err := s.tokens.GenerateToken(uid, username, PurposeRealtime, s.realtimeTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().Add(s.realtimeTTL), nil
}

// AuthenticateRealtime resolves a realtime token.
func (s *AuthService) AuthenticateRealtime(token string) (*Claims, error) {
	return s.tokens.ParseToken(token, PurposeRealtime)
}
