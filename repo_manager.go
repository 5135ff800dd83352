package members

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	AccountMeta() *AccountMetaRepository
	VerificationTokens() VerificationTokens
}

type mngr struct {
	db                 *bun.DB
	accounts           Accounts
	accountMeta        *AccountMetaRepository
	verificationTokens VerificationTokens
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:                 db,
		accounts:           NewAccountsRepository(db),
		accountMeta:        NewAccountMetaRepository(db),
		verificationTokens: NewVerificationTokensRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.accountMeta == nil {
		return errors.New("repository accountMeta should be initialized")
	}

	if m.verificationTokens == nil {
		return errors.New("repository verificationTokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) AccountMeta() *AccountMetaRepository {
	return m.accountMeta
}

func (m mngr) VerificationTokens() VerificationTokens {
	return m.verificationTokens
}
