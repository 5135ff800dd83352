package members_test

import (
	"context"
	"testing"

	members "github.com/goliatone/go-members"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountMetaSetAndGet(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()

	account, err := repo.Accounts().Register(ctx, &members.Account{
		Username:    "legolas",
		DisplayName: "Legolas",
		Email:       "legolas@example.com",
	})
	require.NoError(t, err)

	err = repo.AccountMeta().SetMeta(ctx, account.ID, members.MetaKeyAvatar, "https://example.com/a.png")
	require.NoError(t, err)

	metas, err := repo.AccountMeta().GetMeta(ctx, account.ID, members.MetaKeyAvatar)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "https://example.com/a.png", metas[0].Value)
}

func TestAccountMetaSetSupersedesValue(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()

	account, err := repo.Accounts().Register(ctx, &members.Account{
		Username:    "gimli",
		DisplayName: "Gimli",
		Email:       "gimli@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, repo.AccountMeta().SetMeta(ctx, account.ID, members.MetaKeyAvatar, "v1"))
	require.NoError(t, repo.AccountMeta().SetMeta(ctx, account.ID, members.MetaKeyAvatar, "v2"))

	metas, err := repo.AccountMeta().GetMeta(ctx, account.ID, members.MetaKeyAvatar)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "v2", metas[0].Value)
}

func TestAccountMetaGetMetaValues(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()

	a, err := repo.Accounts().Register(ctx, &members.Account{
		Username:    "boromir",
		DisplayName: "Boromir",
		Email:       "boromir@example.com",
	})
	require.NoError(t, err)

	b, err := repo.Accounts().Register(ctx, &members.Account{
		Username:    "faramir",
		DisplayName: "Faramir",
		Email:       "faramir@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, repo.AccountMeta().SetMeta(ctx, a.ID, "city", "minas-tirith"))
	require.NoError(t, repo.AccountMeta().SetMeta(ctx, b.ID, "city", "minas-tirith"))

	metas, err := repo.AccountMeta().GetMetaValues(ctx, "city", "minas-tirith")
	require.NoError(t, err)
	assert.Len(t, metas, 2)

	metas, err = repo.AccountMeta().GetMetaValues(ctx, "city", "osgiliath")
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestAccountMetaDelete(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()

	account, err := repo.Accounts().Register(ctx, &members.Account{
		Username:    "aragorn",
		DisplayName: "Aragorn",
		Email:       "aragorn@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, repo.AccountMeta().SetMeta(ctx, account.ID, members.MetaKeyAvatar, "v1"))

	err = repo.AccountMeta().DeleteMetaByAccount(ctx, account.ID, members.MetaKeyAvatar)
	require.NoError(t, err)

	metas, err := repo.AccountMeta().GetMeta(ctx, account.ID, members.MetaKeyAvatar)
	require.NoError(t, err)
	assert.Empty(t, metas)
}
