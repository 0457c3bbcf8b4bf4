package repository

import (
	"errors"
	"fmt"
	"time"

	authusecase "leadwire-backend/internal/auth/usecase"
	"leadwire-backend/internal/mailsync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// syncStateRepository implements SyncStateRepository interface
type syncStateRepository struct {
	db       *gorm.DB
	resolver authusecase.Resolver
}

// NewSyncStateRepository creates a new instance of syncStateRepository
func NewSyncStateRepository(db *gorm.DB, resolver authusecase.Resolver) SyncStateRepository {
	return &syncStateRepository{
		db:       db,
		resolver: resolver,
	}
}

func (r *syncStateRepository) Get(external string) (*domain.SyncState, error) {
	userID, err := r.resolve(external)
	if err != nil {
		return nil, err
	}

	var state domain.SyncState
	if err := r.db.Where("user_id = ?", userID).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *syncStateRepository) Upsert(external string, patch domain.SyncStatePatch) error {
	userID, err := r.resolve(external)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if patch.DeltaCursor != nil {
		updates["delta_cursor"] = *patch.DeltaCursor
	}
	if patch.SubscriptionID != nil {
		updates["subscription_id"] = *patch.SubscriptionID
	}
	if patch.SubscriptionExpiry != nil {
		updates["subscription_expiry"] = *patch.SubscriptionExpiry
	}
	if patch.LastSyncedAt != nil {
		updates["last_synced_at"] = *patch.LastSyncedAt
	}
	if patch.LastError != nil {
		updates["last_error"] = *patch.LastError
	}

	// FirstOrCreate then Updates: sync runs are serialized per user, so the
	// only concurrency here is field-level last-writer-wins, which is fine.
	var state domain.SyncState
	result := r.db.Where("user_id = ?", userID).FirstOrCreate(&state, domain.SyncState{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}

	return r.db.Model(&domain.SyncState{}).Where("user_id = ?", userID).Updates(updates).Error
}

func (r *syncStateRepository) Clear(external string) error {
	userID, err := r.resolve(external)
	if err != nil {
		return err
	}
	return r.db.Where("user_id = ?", userID).Delete(&domain.SyncState{}).Error
}

func (r *syncStateRepository) resolve(external string) (string, error) {
	userID, err := r.resolver.Resolve(external)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnresolvableUser, err)
	}
	return userID, nil
}
