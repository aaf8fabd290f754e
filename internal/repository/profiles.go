package repository

import (
	"bytes"
	"context"
	"encoding/hex"
	"mime"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/tasksync/internal/backend"
	"github.com/felixgeelhaar/tasksync/internal/cache"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
)

// Profiles reads and writes the profiles table.
type Profiles struct {
	db     *backend.Client
	bucket string
	cache  *cache.Group[*domain.Profile]
}

// Get returns the profile of userID, or nil when there is no row yet.
func (r *Profiles) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	return r.cache.Do(ctx, "profile:"+userID, func(ctx context.Context) (*domain.Profile, error) {
		var p domain.Profile
		found, err := r.db.From(tableProfiles).Select("*").Eq("id", userID).MaybeSingle(ctx, &p)
		if err != nil {
			return nil, errors.NewQueryError(tableProfiles, err)
		}
		if !found {
			return nil, nil
		}
		return &p, nil
	})
}

// Save creates or replaces the profile row keyed by p.ID.
func (r *Profiles) Save(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	if p.ID == "" {
		return nil, errors.NewInvalidError("profile id is required")
	}
	if !p.Complete() {
		return nil, errors.NewInvalidError("first or last name is required")
	}

	var rows []domain.Profile
	err := r.db.From(tableProfiles).Select("*").Upsert(ctx, p, "id", &rows)
	r.cache.Invalidate("profile:" + p.ID)
	if err != nil {
		return nil, errors.NewWriteError(tableProfiles, err)
	}
	if len(rows) == 0 {
		return &p, nil
	}
	return &rows[0], nil
}

// UploadAvatar stores an image for userID and points the profile at it.
// Objects are named by content hash, so re-uploading the same image is a
// no-op for the bucket.
func (r *Profiles) UploadAvatar(ctx context.Context, userID string, image []byte, contentType string) (string, error) {
	if len(image) == 0 {
		return "", errors.NewInvalidError("avatar image is empty")
	}

	sum := blake3.Sum256(image)
	path := userID + "/" + hex.EncodeToString(sum[:16]) + extensionFor(contentType)

	if err := r.db.Upload(ctx, r.bucket, path, bytes.NewReader(image), contentType, true); err != nil {
		return "", errors.Wrap(errors.ErrCodeDataUpload, "failed to upload avatar", err)
	}

	url := r.db.PublicURL(r.bucket, path)
	err := r.db.From(tableProfiles).Eq("id", userID).Update(ctx, map[string]string{"avatar_url": url}, nil)
	r.cache.Invalidate("profile:" + userID)
	if err != nil {
		return "", errors.NewWriteError(tableProfiles, err)
	}
	return url, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func cloneProfile(p *domain.Profile) *domain.Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.AvatarURL != nil {
		u := *p.AvatarURL
		cp.AvatarURL = &u
	}
	return &cp
}
