package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"study-companion/store"
)

const MaxAvatarBytes = 2 << 20

var avatarExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// Uploader puts a file in object storage and returns its public URL.
type Uploader interface {
	UploadFile(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}

type AvatarService struct {
	store    store.Store
	uploader Uploader
}

// NewAvatarService accepts a nil uploader; uploads then fail with ErrUnavailable.
func NewAvatarService(s store.Store, uploader Uploader) *AvatarService {
	return &AvatarService{store: s, uploader: uploader}
}

// Upload stores an avatar image and records its URL on the user document.
func (s *AvatarService) Upload(ctx context.Context, uid string, fh *multipart.FileHeader) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("%w: avatar storage", ErrUnavailable)
	}
	if fh == nil {
		return "", fmt.Errorf("%w: avatar file is required", ErrValidation)
	}
	if fh.Size > MaxAvatarBytes {
		return "", fmt.Errorf("%w: avatar is larger than %d bytes", ErrValidation, MaxAvatarBytes)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !avatarExtensions[ext] {
		return "", fmt.Errorf("%w: unsupported image type %q", ErrValidation, ext)
	}
	if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: content type %q is not an image", ErrValidation, ct)
	}

	if _, err := s.store.Get(ctx, store.Users, uid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: user %s", ErrNotFound, uid)
		}
		return "", fmt.Errorf("%w: load user: %v", ErrStoreFailure, err)
	}

	key := fmt.Sprintf("avatars/%s/%s%s", uid, uuid.NewString(), ext)
	url, err := s.uploader.UploadFile(ctx, fh, key)
	if err != nil {
		return "", fmt.Errorf("%w: upload avatar: %v", ErrStoreFailure, err)
	}
	if err := s.store.Set(ctx, store.Users, uid, store.Document{"avatarUrl": url}); err != nil {
		return "", fmt.Errorf("%w: record avatar url: %v", ErrStoreFailure, err)
	}
	log.Printf("🖼️  [AVATAR] %s uploaded %s", uid, key)
	return url, nil
}
