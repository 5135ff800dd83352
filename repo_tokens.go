package members

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationTokens generates, persists, and consumes single use account
// verification codes. At most one active token exists per account: issuing a
// new one supersedes the prior record.
type VerificationTokens interface {
	Issue(ctx context.Context, accountID uuid.UUID) (*VerificationToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*VerificationToken, error)
	FindByCode(ctx context.Context, code string) ([]*VerificationToken, error)
	Consume(ctx context.Context, token *VerificationToken) error
}

type verificationTokens struct {
	db *bun.DB
}

var _ VerificationTokens = (*verificationTokens)(nil)

// NewVerificationTokensRepository creates a new repository.
func NewVerificationTokensRepository(db *bun.DB) VerificationTokens {
	return &verificationTokens{db: db}
}

func (r *verificationTokens) Issue(ctx context.Context, accountID uuid.UUID) (*VerificationToken, error) {
	return r.IssueTx(ctx, r.db, accountID)
}

func (r *verificationTokens) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*VerificationToken, error) {
	code, err := GenerateVerificationCode()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate verification code")
	}

	// supersede any prior token for this account
	if _, err := tx.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to supersede verification token")
	}

	now := time.Now()
	record := &VerificationToken{
		ID:        uuid.New(),
		AccountID: accountID,
		Code:      code,
		CreatedAt: &now,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist verification token")
	}

	return record, nil
}

// FindByCode returns tokens matching a code, earliest created first. The
// unique constraint makes more than one match impossible, but callers treat
// the result as a list and take the first so a data anomaly never turns into
// a user visible failure.
func (r *verificationTokens) FindByCode(ctx context.Context, code string) ([]*VerificationToken, error) {
	var models []*VerificationToken
	err := r.db.NewSelect().
		Model(&models).
		Where("code = ?", code).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return []*VerificationToken{}, nil
		}
		return nil, err
	}

	return models, nil
}

func (r *verificationTokens) Consume(ctx context.Context, token *VerificationToken) error {
	_, err := r.db.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("id = ?", token.ID).
		Exec(ctx)
	return err
}

// GenerateVerificationCode produces a 40 character hex code from random bytes.
func GenerateVerificationCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	sum := sha1.Sum(buf)
	return hex.EncodeToString(sum[:]), nil
}
