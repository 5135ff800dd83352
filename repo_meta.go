package members

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountMetaRepository owns the ad-hoc key/value records attached to accounts.
type AccountMetaRepository struct {
	db *bun.DB
}

// NewAccountMetaRepository creates a new repository.
func NewAccountMetaRepository(db *bun.DB) *AccountMetaRepository {
	return &AccountMetaRepository{db: db}
}

// GetMetaValues returns all meta records matching a key and value, ordered by
// creation time so callers get a deterministic first match.
func (r *AccountMetaRepository) GetMetaValues(ctx context.Context, key, value string) ([]*AccountMeta, error) {
	var models []*AccountMeta
	err := r.db.NewSelect().
		Model(&models).
		Where("meta_key = ? AND meta_value = ?", key, value).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return []*AccountMeta{}, nil
		}
		return nil, err
	}

	return models, nil
}

// GetMeta returns the meta records for an account and key.
func (r *AccountMetaRepository) GetMeta(ctx context.Context, accountID uuid.UUID, key string) ([]*AccountMeta, error) {
	var models []*AccountMeta
	err := r.db.NewSelect().
		Model(&models).
		Where("account_id = ? AND meta_key = ?", accountID, key).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return []*AccountMeta{}, nil
		}
		return nil, err
	}

	return models, nil
}

// SetMeta upserts a meta record; a new value for the same (account, key) pair
// supersedes the prior one.
func (r *AccountMetaRepository) SetMeta(ctx context.Context, accountID uuid.UUID, key, value string) error {
	now := time.Now()
	record := &AccountMeta{
		ID:        uuid.New(),
		AccountID: accountID,
		Key:       key,
		Value:     value,
		UpdatedAt: &now,
	}

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (account_id, meta_key) DO UPDATE").
		Set("meta_value = EXCLUDED.meta_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

// DeleteMeta removes a single meta record.
func (r *AccountMetaRepository) DeleteMeta(ctx context.Context, record *AccountMeta) error {
	_, err := r.db.NewDelete().
		Model((*AccountMeta)(nil)).
		Where("id = ?", record.ID).
		Exec(ctx)
	return err
}

// DeleteMetaByAccount removes all records for an account and key.
func (r *AccountMetaRepository) DeleteMetaByAccount(ctx context.Context, accountID uuid.UUID, key string) error {
	_, err := r.db.NewDelete().
		Model((*AccountMeta)(nil)).
		Where("account_id = ? AND meta_key = ?", accountID, key).
		Exec(ctx)
	return err
}
