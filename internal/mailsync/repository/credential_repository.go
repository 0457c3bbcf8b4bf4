package repository

import (
	"errors"
	"fmt"
	"time"

	authusecase "leadwire-backend/internal/auth/usecase"
	"leadwire-backend/internal/mailsync/domain"
	"leadwire-backend/pkg/crypto"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// credentialRepository implements CredentialRepository interface
type credentialRepository struct {
	db       *gorm.DB
	enc      *crypto.Encryptor
	resolver authusecase.Resolver
}

// NewCredentialRepository creates a new instance of credentialRepository
func NewCredentialRepository(db *gorm.DB, enc *crypto.Encryptor, resolver authusecase.Resolver) CredentialRepository {
	return &credentialRepository{
		db:       db,
		enc:      enc,
		resolver: resolver,
	}
}

func (r *credentialRepository) Put(external string, cred *domain.Credential) error {
	userID, err := r.resolve(external)
	if err != nil {
		return err
	}

	sealed, err := r.enc.Encrypt(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := time.Now()
	row := &domain.Credential{
		ID:                uuid.New().String(),
		UserID:            userID,
		MailboxAddress:    cred.MailboxAddress,
		ProviderAccountID: cred.ProviderAccountID,
		TenantID:          cred.TenantID,
		EnvironmentTag:    cred.EnvironmentTag,
		RefreshTokenEnc:   sealed,
		LastKnownExpiry:   cred.LastKnownExpiry,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Replace wholesale: delete-then-create in one transaction keeps the
	// unique user_id index honest across re-authorizations.
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&domain.Credential{}).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
}

func (r *credentialRepository) Get(external string) (*domain.Credential, error) {
	userID, err := r.resolve(external)
	if err != nil {
		return nil, err
	}

	var cred domain.Credential
	if err := r.db.Where("user_id = ?", userID).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, err
	}

	plaintext, err := r.enc.Decrypt(cred.RefreshTokenEnc)
	if err != nil {
		if errors.Is(err, crypto.ErrCorruptCiphertext) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrCorruptCredential, userID)
		}
		return nil, err
	}
	cred.RefreshToken = plaintext

	return &cred, nil
}

func (r *credentialRepository) Remove(external string) error {
	userID, err := r.resolve(external)
	if err != nil {
		return err
	}
	return r.db.Where("user_id = ?", userID).Delete(&domain.Credential{}).Error
}

func (r *credentialRepository) ListUserIDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&domain.Credential{}).Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *credentialRepository) resolve(external string) (string, error) {
	userID, err := r.resolver.Resolve(external)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnresolvableUser, err)
	}
	return userID, nil
}
