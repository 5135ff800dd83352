package members

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// AccountVerifyMessage carries a verification code submitted by a member.
type AccountVerifyMessage struct {
	Code       string `json:"code" example:"a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2" doc:"Single use verification code."`
	OnResponse func(a *AccountVerifyResponse)
}

func (e AccountVerifyMessage) Type() string { return "account.verify" }

// AccountVerifyResponse reports the outcome of a verification attempt.
type AccountVerifyResponse struct {
	Verified bool   `json:"verified" example:"true" doc:"Was the account marked verified?"`
	GUID     string `json:"guid" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Owning account identifier."`
}

// AccountVerifyHandler drives the account verification state machine: a one
// way unverified -> verified transition per account, gated by a single use
// issued -> consumed transition per code.
type AccountVerifyHandler struct {
	repo   RepositoryManager
	logger Logger
	sink   ActivitySink
}

// NewAccountVerifyHandler creates a handler bound to a repository manager.
func NewAccountVerifyHandler(repo RepositoryManager, logger Logger) *AccountVerifyHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &AccountVerifyHandler{
		repo:   repo,
		logger: logger,
		sink:   noopActivitySink{},
	}
}

// SetActivitySink routes verification events to an audit sink.
func (h *AccountVerifyHandler) SetActivitySink(sink ActivitySink) *AccountVerifyHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *AccountVerifyHandler) Execute(ctx context.Context, event AccountVerifyMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerifyHandler) execute(ctx context.Context, event AccountVerifyMessage) error {
	// shape check happens before any storage access
	if len(event.Code) != VerificationCodeLength {
		return ErrInvalidCode.WithMetadata(map[string]any{
			"length": len(event.Code),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	tokens, err := h.repo.VerificationTokens().FindByCode(ctx, event.Code)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification token")
	}

	if len(tokens) == 0 {
		return ErrNoMetaCode
	}

	// earliest created wins when the unique constraint has been violated out
	// of band; a valid code should not fail on a data anomaly
	token := tokens[0]

	account, err := h.repo.Accounts().GetByGUID(ctx, token.AccountID.String())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrNoAccount.WithMetadata(map[string]any{
				"guid": token.AccountID.String(),
			})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account for verification token")
	}

	// the verified write must be durable before the token delete: a crash in
	// between leaves a verified account and a dangling, harmless token
	if err := h.repo.Accounts().MarkVerified(ctx, account.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark account verified")
	}

	if err := h.repo.VerificationTokens().Consume(ctx, token); err != nil {
		// verification already happened; cleanup failure is an operational
		// error, not a user facing one
		h.logger.Error("failed to consume verification token", "error", err, "code", event.Code)
	}

	if err := h.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventMemberVerified,
		AccountID:  account.GUID(),
		OccurredAt: time.Now(),
	}); err != nil {
		h.logger.Warn("failed to record verification activity", "error", err)
	}

	if event.OnResponse != nil {
		event.OnResponse(&AccountVerifyResponse{
			Verified: true,
			GUID:     account.GUID(),
		})
	}

	return nil
}
