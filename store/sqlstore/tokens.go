package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"gorm.io/gorm"
)

var _ blogauth.TokenStore = (*Store)(nil)

// SaveToken implements blogauth.TokenStore.
func (s *Store) SaveToken(ctx context.Context, token blogauth.Token) error {
	m := tokenModel{
		Identifier: token.Identifier,
		Hash:       token.Hash,
		ExpiresAt:  token.ExpiresAt.UTC(),
		CreatedAt:  token.CreatedAt.UTC(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// ConsumeToken reads and deletes the matching row in one transaction. The
// delete's row count decides the winner when two callers race.
func (s *Store) ConsumeToken(ctx context.Context, identifier, hash string) (*blogauth.Token, error) {
	var out *blogauth.Token
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m tokenModel
		err := tx.Where("identifier = ? AND hash = ?", identifier, hash).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return blogauth.ErrTokenNotFound
		}
		if err != nil {
			return err
		}

		res := tx.Where("identifier = ? AND hash = ?", identifier, hash).Delete(&tokenModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return blogauth.ErrTokenNotFound
		}

		out = &blogauth.Token{
			Identifier: m.Identifier,
			Hash:       m.Hash,
			ExpiresAt:  m.ExpiresAt,
			CreatedAt:  m.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PurgeTokens implements blogauth.TokenStore.
func (s *Store) PurgeTokens(ctx context.Context, identifier string) error {
	return s.db.WithContext(ctx).Where("identifier = ?", identifier).Delete(&tokenModel{}).Error
}

// PruneExpiredTokens removes tokens that expired before cutoff and returns
// how many were removed. Expired tokens are otherwise only removed when
// presented or purged.
func (s *Store) PruneExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", cutoff.UTC()).Delete(&tokenModel{})
	return res.RowsAffected, res.Error
}
