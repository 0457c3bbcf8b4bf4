package repository

import (
	"errors"
	"strings"

	crmdomain "leadwire-backend/internal/crm/domain"

	"gorm.io/gorm"
)

// LeadRepository defines the lookup surface the sync engine uses
type LeadRepository interface {
	FindByEmail(email string) (*crmdomain.Lead, error)
}

// leadRepository implements LeadRepository interface
type leadRepository struct {
	db *gorm.DB
}

// NewLeadRepository creates a new instance of leadRepository
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &leadRepository{
		db: db,
	}
}

// FindByEmail returns the lead for an address, or nil when none matches.
// Addresses are matched case-insensitively.
func (r *leadRepository) FindByEmail(email string) (*crmdomain.Lead, error) {
	var lead crmdomain.Lead
	err := r.db.Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lead, nil
}
