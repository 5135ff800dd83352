package members_test

import (
	"context"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	members "github.com/goliatone/go-members"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLocalAccount(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	handler := members.NewRegisterAccountHandler(repo, nil)

	var account *members.Account
	err := handler.Execute(context.Background(), members.RegisterAccountMessage{
		DisplayName: "Tom Bombadil",
		Email:       "tom@example.com",
		Password:    "a-long-password",
		OnResponse:  func(a *members.Account) { account = a },
	})
	require.NoError(t, err)
	require.NotNil(t, account)

	// username derived from the display name
	assert.Equal(t, "tom-bombadil", account.Username)
	assert.False(t, account.Verified)
	assert.True(t, account.Enabled)
	assert.Empty(t, account.Provider)

	require.NoError(t, members.ComparePasswordAndHash("a-long-password", account.PasswordHash))

	// a local registration leaves a pending verification token behind
	found, err := repo.Accounts().GetByGUID(context.Background(), account.GUID())
	require.NoError(t, err)
	assert.False(t, found.Verified)
}

func TestRegisterLocalAccountIssuesVerificationToken(t *testing.T) {
	repo, db, cleanup := setupRepoManager(t)
	defer cleanup()

	handler := members.NewRegisterAccountHandler(repo, nil)

	var account *members.Account
	err := handler.Execute(context.Background(), members.RegisterAccountMessage{
		DisplayName: "Goldberry",
		Email:       "goldberry@example.com",
		Password:    "a-long-password",
		OnResponse:  func(a *members.Account) { account = a },
	})
	require.NoError(t, err)

	var count int
	err = db.QueryRow(
		"SELECT COUNT(*) FROM account_verification_tokens WHERE account_id = ?",
		account.ID.String(),
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegisterRejectsEmptyPassword(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	handler := members.NewRegisterAccountHandler(repo, nil)

	err := handler.Execute(context.Background(), members.RegisterAccountMessage{
		DisplayName: "Old Man Willow",
		Email:       "willow@example.com",
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
}

func TestRegisterTransitionalAccount(t *testing.T) {
	repo, db, cleanup := setupRepoManager(t)
	defer cleanup()

	handler := members.NewRegisterAccountHandler(repo, nil)

	transitional := &members.TransitionalRegistration{
		Provider:   "github",
		ProviderID: "gh-123",
		Name:       "Radagast the Brown",
		Email:      "radagast@example.com",
		IssuedAt:   time.Now().Unix(),
		ExpiresAt:  time.Now().Add(10 * time.Minute).Unix(),
	}

	var account *members.Account
	err := handler.Execute(context.Background(), members.RegisterAccountMessage{
		Transitional: transitional,
		OnResponse:   func(a *members.Account) { account = a },
	})
	require.NoError(t, err)
	require.NotNil(t, account)

	// provider fields seed the blanks, and the provider already vouched
	// for the email channel
	assert.Equal(t, "github", account.Provider)
	assert.Equal(t, "gh-123", account.ProviderID)
	assert.Equal(t, "Radagast the Brown", account.DisplayName)
	assert.Equal(t, "radagast@example.com", account.Email)
	assert.Equal(t, "radagast-the-brown", account.Username)
	assert.True(t, account.Verified)
	assert.Empty(t, account.PasswordHash)

	// no pending verification token for provider backed accounts
	var count int
	err = db.QueryRow(
		"SELECT COUNT(*) FROM account_verification_tokens WHERE account_id = ?",
		account.ID.String(),
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRegisterFormValuesWinOverTransitional(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	handler := members.NewRegisterAccountHandler(repo, nil)

	transitional := &members.TransitionalRegistration{
		Provider:   "github",
		ProviderID: "gh-456",
		Name:       "Provider Name",
		Email:      "provider@example.com",
	}

	var account *members.Account
	err := handler.Execute(context.Background(), members.RegisterAccountMessage{
		DisplayName:  "Form Name",
		Email:        "form@example.com",
		Password:     "a-long-password",
		Transitional: transitional,
		OnResponse:   func(a *members.Account) { account = a },
	})
	require.NoError(t, err)

	assert.Equal(t, "Form Name", account.DisplayName)
	assert.Equal(t, "form@example.com", account.Email)
	assert.Equal(t, "github", account.Provider)

	// a provider backed account may still carry a chosen local password
	require.NoError(t, members.ComparePasswordAndHash("a-long-password", account.PasswordHash))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	handler := members.NewRegisterAccountHandler(repo, nil)

	msg := members.RegisterAccountMessage{
		DisplayName: "Smeagol",
		Email:       "precious@example.com",
		Password:    "a-long-password",
	}

	require.NoError(t, handler.Execute(context.Background(), msg))

	msg.Username = "deagol"
	err := handler.Execute(context.Background(), msg)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, members.TextCodeDuplicateAccount, richErr.TextCode)
}

func TestRegisterConcurrentDuplicateEmail(t *testing.T) {
	repo, db, cleanup := setupRepoManager(t)
	defer cleanup()

	handler := members.NewRegisterAccountHandler(repo, nil)

	results := make(chan error, 2)
	for _, username := range []string{"smeagol", "deagol"} {
		go func(username string) {
			results <- handler.Execute(context.Background(), members.RegisterAccountMessage{
				Username:    username,
				DisplayName: "Smeagol",
				Email:       "precious@example.com",
				Password:    "a-long-password",
			})
		}(username)
	}

	var failures []error
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			failures = append(failures, err)
		}
	}

	// whichever goroutine loses the claim gets the duplicate translation
	require.Len(t, failures, 1)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(failures[0], &richErr))
	assert.Equal(t, members.TextCodeDuplicateAccount, richErr.TextCode)

	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM accounts WHERE email = ?", "precious@example.com",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegisterUsernameTruncated(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	handler := members.NewRegisterAccountHandler(repo, nil)

	var account *members.Account
	err := handler.Execute(context.Background(), members.RegisterAccountMessage{
		DisplayName: strings.Repeat("Eorl ", 20),
		Email:       "eorl@example.com",
		Password:    "a-long-password",
		OnResponse:  func(a *members.Account) { account = a },
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(account.Username), members.UsernameMaxLength)
}

func TestRegisterWithHashid(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	handler := members.NewRegisterAccountHandler(repo, nil)

	expected, err := hashid.NewUUID("treebeard@example.com")
	require.NoError(t, err)

	var account *members.Account
	err = handler.Execute(context.Background(), members.RegisterAccountMessage{
		DisplayName: "Treebeard",
		Email:       "treebeard@example.com",
		Password:    "a-long-password",
		UseHashid:   true,
		OnResponse:  func(a *members.Account) { account = a },
	})
	require.NoError(t, err)
	assert.Equal(t, expected, account.ID)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "", members.NormalizePhone(""))
	assert.Equal(t, "+12125551234", members.NormalizePhone("(212) 555-1234"))
	assert.Equal(t, "not-a-phone", members.NormalizePhone("not-a-phone"))
}
