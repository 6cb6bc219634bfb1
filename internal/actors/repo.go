package actors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/castingly/castingly-backend/internal/repo"
	"github.com/castingly/castingly-backend/pkg/db/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Profile metadata keys mirrored from the avatar.
const (
	metaProfileImage = "profile_image"
	metaHeadshot     = "headshot_url"
)

const emailBatchSize = 1000

// Repository exposes legacy actor persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs an actors repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindByID loads an actor by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Actor, error) {
	var actor models.Actor
	if err := r.DB(ctx).First(&actor, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &actor, nil
}

// FindByEmail retrieves the actor matching email, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Actor, error) {
	var actor models.Actor
	err := r.DB(ctx).
		Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&actor).Error
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

// EmailsByIDs returns id -> email for the actors that exist.
func (r *Repository) EmailsByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for start := 0; start < len(ids); start += emailBatchSize {
		end := min(start+emailBatchSize, len(ids))
		var rows []models.Actor
		if err := r.DB(ctx).Select("id", "email").Where("id IN ?", ids[start:end]).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[row.ID] = row.Email
		}
	}
	return out, nil
}

// UpdateAvatar sets avatar_url and mirrors it into the profile metadata.
func (r *Repository) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		var actor models.Actor
		if err := tx.First(&actor, "id = ?", id).Error; err != nil {
			return err
		}

		meta := map[string]any{}
		if len(actor.Metadata) > 0 {
			if err := json.Unmarshal(actor.Metadata, &meta); err != nil {
				return fmt.Errorf("decode actor metadata: %w", err)
			}
		}
		meta[metaProfileImage] = avatarURL
		meta[metaHeadshot] = avatarURL
		encoded, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode actor metadata: %w", err)
		}

		return tx.Model(&models.Actor{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"avatar_url": avatarURL,
				"metadata":   datatypes.JSON(encoded),
			}).Error
	})
}
