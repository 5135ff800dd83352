package members

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var MarkAccountVerifiedSQL = `UPDATE "accounts" AS "acc"
SET
	"is_verified" = TRUE
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// Accounts owns the Account entities.
type Accounts interface {
	repository.Repository[*Account]

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	GetByGUID(ctx context.Context, guid string) (*Account, error)
	GetByGUIDTx(ctx context.Context, tx bun.IDB, guid string) (*Account, error)
	Save(ctx context.Context, account *Account) (*Account, error)
	SaveTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	TrackSeen(ctx context.Context, account *Account) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)

	record, err := a.Repository.CreateTx(ctx, tx, account)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicateAccount.WithMetadata(map[string]any{
				"email":    account.Email,
				"username": account.Username,
			})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) GetByGUID(ctx context.Context, guid string) (*Account, error) {
	return a.GetByGUIDTx(ctx, a.db, guid)
}

func (a *accounts) GetByGUIDTx(ctx context.Context, tx bun.IDB, guid string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", guid).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"guid": guid,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) Save(ctx context.Context, account *Account) (*Account, error) {
	return a.SaveTx(ctx, a.db, account)
}

func (a *accounts) SaveTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	if account.ID == uuid.Nil {
		return a.RegisterTx(ctx, tx, account)
	}

	record, err := a.Repository.UpdateTx(ctx, tx, account, repository.UpdateByID(account.ID.String()))
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicateAccount.WithMetadata(map[string]any{
				"email":    account.Email,
				"username": account.Username,
			})
		}
		return nil, err
	}

	return record, nil
}

// MarkVerified commits the one way verified transition as a single statement.
// Running it against an already verified account is a harmless no-op.
func (a *accounts) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return a.MarkVerifiedTx(ctx, a.db, id)
}

func (a *accounts) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := a.Repository.RawTx(ctx, tx, MarkAccountVerifiedSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accounts) TrackSeen(ctx context.Context, account *Account) error {
	lastSeen := time.Now()
	_, err := a.db.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"last_seen_at" = ?
		WHERE
			("acc".id = ?)
			AND "acc"."deleted_at" IS NULL;
	`, lastSeen, account.ID).Exec(ctx)

	return err
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Enabled = true

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
