package sqlstore

import (
	"time"

	"github.com/OmorFaruk63/blogauth"
)

type accountModel struct {
	ID               string `gorm:"primaryKey"`
	Email            string `gorm:"uniqueIndex;not null"`
	Name             string `gorm:"not null;default:''"`
	PasswordHash     string `gorm:"not null;default:''"`
	Role             string `gorm:"not null;default:USER"`
	EmailVerifiedAt  *time.Time
	FailedLoginCount int `gorm:"not null;default:0"`
	LockedUntil      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (accountModel) TableName() string { return "accounts" }

type identityModel struct {
	ID           string `gorm:"primaryKey"`
	AccountID    string `gorm:"index;not null"`
	Provider     string `gorm:"uniqueIndex:idx_provider_subject;not null"`
	Subject      string `gorm:"uniqueIndex:idx_provider_subject;not null"`
	AccessToken  string `gorm:"not null;default:''"`
	RefreshToken string `gorm:"not null;default:''"`
	IDToken      string `gorm:"column:id_token;not null;default:''"`
	TokenType    string `gorm:"not null;default:''"`
	ExpiresAt    *time.Time
	CreatedAt    time.Time
}

func (identityModel) TableName() string { return "federated_identities" }

type tokenModel struct {
	Identifier string    `gorm:"primaryKey"`
	Hash       string    `gorm:"primaryKey"`
	ExpiresAt  time.Time `gorm:"not null"`
	CreatedAt  time.Time
}

func (tokenModel) TableName() string { return "verification_tokens" }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func toAccountModel(a *blogauth.Account) accountModel {
	return accountModel{
		ID:               a.ID,
		Email:            a.Email,
		Name:             a.Name,
		PasswordHash:     a.PasswordHash,
		Role:             string(a.Role),
		EmailVerifiedAt:  utcPtr(a.EmailVerifiedAt),
		FailedLoginCount: a.FailedLoginCount,
		LockedUntil:      utcPtr(a.LockedUntil),
		CreatedAt:        a.CreatedAt.UTC(),
		UpdatedAt:        a.UpdatedAt.UTC(),
	}
}

func (m accountModel) toAccount() *blogauth.Account {
	return &blogauth.Account{
		ID:               m.ID,
		Email:            m.Email,
		Name:             m.Name,
		PasswordHash:     m.PasswordHash,
		Role:             blogauth.Role(m.Role),
		EmailVerifiedAt:  m.EmailVerifiedAt,
		FailedLoginCount: m.FailedLoginCount,
		LockedUntil:      m.LockedUntil,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toIdentityModel(id *blogauth.FederatedIdentity) identityModel {
	return identityModel{
		ID:           id.ID,
		AccountID:    id.AccountID,
		Provider:     id.Provider,
		Subject:      id.Subject,
		AccessToken:  id.AccessToken,
		RefreshToken: id.RefreshToken,
		IDToken:      id.IDToken,
		TokenType:    id.TokenType,
		ExpiresAt:    utcPtr(id.ExpiresAt),
		CreatedAt:    id.CreatedAt.UTC(),
	}
}

func (m identityModel) toIdentity() *blogauth.FederatedIdentity {
	return &blogauth.FederatedIdentity{
		ID:           m.ID,
		AccountID:    m.AccountID,
		Provider:     m.Provider,
		Subject:      m.Subject,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		IDToken:      m.IDToken,
		TokenType:    m.TokenType,
		ExpiresAt:    m.ExpiresAt,
		CreatedAt:    m.CreatedAt,
	}
}
