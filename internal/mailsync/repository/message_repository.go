package repository

import (
	"fmt"
	"time"

	"leadwire-backend/internal/mailsync/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// messageRepository implements MessageRepository interface
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new instance of messageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

func (r *messageRepository) ExistingIDs(messageIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(messageIDs))
	if len(messageIDs) == 0 {
		return existing, nil
	}

	var found []string
	err := r.db.Model(&domain.Message{}).
		Where("message_id IN ?", messageIDs).
		Pluck("message_id", &found).Error
	if err != nil {
		return nil, err
	}

	for _, id := range found {
		existing[id] = struct{}{}
	}
	return existing, nil
}

func (r *messageRepository) BulkUpsert(messages []*domain.Message) error {
	if len(messages) == 0 {
		return nil
	}

	// Atomic upsert: INSERT ... ON CONFLICT (message_id) DO UPDATE.
	// Hydration fields are deliberately excluded so a re-delivered message
	// never un-hydrates a body that was already fetched.
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"direction",
			"sender_address",
			"recipient_addresses",
			"subject",
			"body_preview",
			"sent_at",
			"linked_entity_id",
			"updated_at",
		}),
	}).Create(&messages).Error
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *messageRepository) UpdateBody(messageID, body string) error {
	return r.db.Model(&domain.Message{}).
		Where("message_id = ?", messageID).
		Updates(map[string]interface{}{
			"body_full":     body,
			"body_hydrated": true,
			"updated_at":    time.Now(),
		}).Error
}

func (r *messageRepository) ListByUser(userID string, limit, offset int) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.Where("user_id = ?", userID).
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) DeleteByUser(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&domain.Message{}).Error
}
