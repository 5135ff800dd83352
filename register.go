package members

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/gosimple/slug"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// RegisterAccountMessage is the form input for a registration merge. When
// Transitional is set the account is provider backed: provider fields seed
// anything the form left blank, but submitted form values always win.
type RegisterAccountMessage struct {
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	UseHashid    bool
	Transitional *TransitionalRegistration
	OnResponse   func(a *Account)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// RegisterAccountHandler produces exactly one Account per registration
// attempt, from local form input or from a provider handoff confirmed by the
// form.
type RegisterAccountHandler struct {
	repo   RepositoryManager
	logger Logger
	sink   ActivitySink
}

// NewRegisterAccountHandler creates a handler bound to a repository manager.
func NewRegisterAccountHandler(repo RepositoryManager, logger Logger) *RegisterAccountHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &RegisterAccountHandler{
		repo:   repo,
		logger: logger,
		sink:   noopActivitySink{},
	}
}

// SetActivitySink routes registration events to an audit sink.
func (h *RegisterAccountHandler) SetActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	account := &Account{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		merged := mergeRegistration(event)

		if merged.Provider == "" {
			hash, err := HashPassword(event.Password)
			if err != nil {
				var richErr *goerrors.Error
				if goerrors.As(err, &richErr) {
					return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
			}
			merged.PasswordHash = hash
		} else if event.Password != "" {
			// a provider vouched for the identity but the member still chose a
			// local password; keep it
			hash, err := HashPassword(event.Password)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
			}
			merged.PasswordHash = hash
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(merged.Email); err == nil {
				merged.ID = id
			}
		}

		// local registrations still need to prove the email channel; provider
		// backed accounts arrive vouched for
		if merged.Provider != "" {
			merged.MarkVerified()
		}

		var err error
		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, merged); err != nil {
			return err
		}

		if account.Provider == "" {
			if _, err := h.repo.VerificationTokens().IssueTx(ctx, tx, account.ID); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	if err := h.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventMemberRegistered,
		AccountID:  account.GUID(),
		Provider:   account.Provider,
		OccurredAt: time.Now(),
	}); err != nil {
		h.logger.Warn("failed to record registration activity", "error", err)
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}

// mergeRegistration folds the optional provider payload under the submitted
// form values. Form input is authoritative; provider data only fills blanks.
func mergeRegistration(event RegisterAccountMessage) *Account {
	account := &Account{
		DisplayName: event.DisplayName,
		Email:       event.Email,
		Phone:       NormalizePhone(event.Phone),
	}

	if t := event.Transitional; t != nil {
		account.Provider = t.Provider
		account.ProviderID = t.ProviderID

		if account.DisplayName == "" {
			account.DisplayName = t.Name
		}
		if account.Email == "" {
			account.Email = t.Email
		}
	}

	account.Username = usernameCandidate(event.Username, account.DisplayName, account.Email)

	return account
}

// usernameCandidate derives a username: explicit input wins, then a slugified
// display name, then the email local part; always bounded to the column width.
func usernameCandidate(username, displayName, email string) string {
	if username == "" && displayName != "" {
		username = slug.Make(displayName)
	}

	if username == "" && strings.Contains(email, "@") {
		username = slug.Make(strings.Split(email, "@")[0])
	}

	if len(username) > UsernameMaxLength {
		username = username[:UsernameMaxLength]
	}

	return username
}

// NormalizePhone formats a phone number as E.164 when it parses, and passes
// the raw input through otherwise so validation can reject it with context.
func NormalizePhone(phone string) string {
	if phone == "" {
		return ""
	}

	num, err := phonenumbers.Parse(phone, "US")
	if err != nil {
		return phone
	}

	return phonenumbers.Format(num, phonenumbers.E164)
}
