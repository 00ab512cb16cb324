package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ blogauth.AccountStore = (*Store)(nil)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return blogauth.ErrAccountNotFound
	}
	return err
}

// FindAccountByEmail implements blogauth.AccountStore.
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*blogauth.Account, error) {
	var m accountModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.toAccount(), nil
}

// FindAccountByID implements blogauth.AccountStore.
func (s *Store) FindAccountByID(ctx context.Context, id string) (*blogauth.Account, error) {
	var m accountModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.toAccount(), nil
}

// CreateAccount implements blogauth.AccountStore.
func (s *Store) CreateAccount(ctx context.Context, account *blogauth.Account) error {
	m := toAccountModel(account)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return blogauth.ErrAccountExists
		}
		return err
	}
	return nil
}

// MarkEmailVerified implements blogauth.AccountStore.
func (s *Store) MarkEmailVerified(ctx context.Context, email string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&accountModel{}).
		Where("email = ?", email).
		Updates(map[string]any{"email_verified_at": at.UTC(), "updated_at": at.UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return blogauth.ErrAccountNotFound
	}
	return nil
}

// UpdatePasswordHash implements blogauth.AccountStore.
func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, hash string) error {
	res := s.db.WithContext(ctx).Model(&accountModel{}).
		Where("id = ?", accountID).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return blogauth.ErrAccountNotFound
	}
	return nil
}

// IncrementFailures bumps the counter with a single UPDATE and sets or
// clears the lock in the same transaction. On postgres the first UPDATE
// holds the row lock, so concurrent failures serialize.
func (s *Store) IncrementFailures(ctx context.Context, accountID string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	var (
		count int
		until *time.Time
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&accountModel{}).
			Where("id = ?", accountID).
			UpdateColumn("failed_login_count", gorm.Expr("failed_login_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return blogauth.ErrAccountNotFound
		}

		var m accountModel
		if err := tx.Select("failed_login_count").Where("id = ?", accountID).First(&m).Error; err != nil {
			return notFound(err)
		}
		count = m.FailedLoginCount

		var lock any
		if count >= threshold {
			v := lockUntil.UTC()
			until = &v
			lock = v
		}
		return tx.Model(&accountModel{}).
			Where("id = ?", accountID).
			UpdateColumn("locked_until", lock).Error
	})
	if err != nil {
		return 0, nil, err
	}
	return count, until, nil
}

// ResetFailures implements blogauth.AccountStore.
func (s *Store) ResetFailures(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).Model(&accountModel{}).
		Where("id = ?", accountID).
		UpdateColumns(map[string]any{"failed_login_count": 0, "locked_until": nil}).Error
}

// FindFederatedIdentity implements blogauth.AccountStore.
func (s *Store) FindFederatedIdentity(ctx context.Context, provider, subject string) (*blogauth.FederatedIdentity, error) {
	var m identityModel
	err := s.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return m.toIdentity(), nil
}

// LinkFederatedIdentity stores identity when its account has none yet.
func (s *Store) LinkFederatedIdentity(ctx context.Context, identity *blogauth.FederatedIdentity) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&accountModel{}).Where("id = ?", identity.AccountID)
		if s.driver == DriverPostgres {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var acc accountModel
		if err := q.Select("id").First(&acc).Error; err != nil {
			return notFound(err)
		}

		var n int64
		if err := tx.Model(&identityModel{}).Where("account_id = ?", identity.AccountID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return blogauth.ErrFederatedAccountNotLinked
		}

		m := toIdentityModel(identity)
		if err := tx.Create(&m).Error; err != nil {
			if isDuplicate(err) {
				return blogauth.ErrFederatedAccountNotLinked
			}
			return err
		}
		return nil
	})
}

// UpdateFederatedIdentity refreshes the provider tokens of an identity.
func (s *Store) UpdateFederatedIdentity(ctx context.Context, identity *blogauth.FederatedIdentity) error {
	res := s.db.WithContext(ctx).Model(&identityModel{}).
		Where("provider = ? AND subject = ?", identity.Provider, identity.Subject).
		Updates(map[string]any{
			"access_token":  identity.AccessToken,
			"refresh_token": identity.RefreshToken,
			"id_token":      identity.IDToken,
			"token_type":    identity.TokenType,
			"expires_at":    utcPtr(identity.ExpiresAt),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return blogauth.ErrAccountNotFound
	}
	return nil
}

// CreateAccountWithIdentity implements blogauth.AccountStore.
func (s *Store) CreateAccountWithIdentity(ctx context.Context, account *blogauth.Account, identity *blogauth.FederatedIdentity) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		am := toAccountModel(account)
		if err := tx.Create(&am).Error; err != nil {
			if isDuplicate(err) {
				return blogauth.ErrAccountExists
			}
			return err
		}
		im := toIdentityModel(identity)
		if err := tx.Create(&im).Error; err != nil {
			if isDuplicate(err) {
				return blogauth.ErrConflict
			}
			return err
		}
		return nil
	})
}
