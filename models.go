package members

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UsernameMaxLength bounds usernames to the storage column width.
const UsernameMaxLength = 32

// VerificationCodeLength is the exact length of a single use verification code.
const VerificationCodeLength = 40

// MetaKeyAvatar is the meta key carrying a member avatar URL.
const MetaKeyAvatar = "avatar"

// Account is the durable member identity record. The GUID is immutable once
// assigned and the verified flag only ever transitions false to true.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	DisplayName   string     `bun:"display_name,notnull" json:"display_name,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	Verified      bool       `bun:"is_verified" json:"is_verified,omitempty"`
	Enabled       bool       `bun:"is_enabled" json:"is_enabled,omitempty"`
	Provider      string     `bun:"provider" json:"provider,omitempty"`
	ProviderID    string     `bun:"provider_id" json:"provider_id,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"password_hash,omitempty"`
	LastSeenAt    *time.Time `bun:"last_seen_at,nullzero" json:"last_seen_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// GUID returns the account identifier as a string.
func (a *Account) GUID() string {
	return a.ID.String()
}

// MarkVerified flips the verified flag. The transition is one way; calling it
// on an already verified account is a no-op.
func (a *Account) MarkVerified() *Account {
	a.Verified = true
	return a
}

// AccountMeta is an ad-hoc key/value record attached to an account. Each
// (account, key) pair holds a single value; writing through the repository
// supersedes the prior value.
type AccountMeta struct {
	bun.BaseModel `bun:"table:account_meta,alias:acm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Key           string     `bun:"meta_key,notnull" json:"meta_key,omitempty"`
	Value         string     `bun:"meta_value" json:"meta_value,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// VerificationToken is a single use account verification code. The unique
// constraint on Code enforces the issued -> consumed, exactly once machine.
//
// Tokens carry no expiry; an unconsumed token stays valid until it is consumed
// or superseded by a newer issue for the same account. CreatedAt is persisted
// so operators can purge stale tokens out of band.
type VerificationToken struct {
	bun.BaseModel `bun:"table:account_verification_tokens,alias:avt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Code          string     `bun:"code,notnull,unique" json:"code,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Authorization is the in-memory representation of who is making the current
// request, derived from the authorization cookie. It is rebuilt per request
// and never persisted server side.
type Authorization struct {
	GUID      string     `json:"guid,omitempty"`
	Cookie    string     `json:"-"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the authorization window has passed.
func (a *Authorization) IsExpired() bool {
	if a == nil || a.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*a.ExpiresAt)
}

// TransitionalRegistration carries identity provider profile fields pending
// confirmation by the local registration form. It must be consumed into an
// Account through the registration merger or discarded.
type TransitionalRegistration struct {
	Provider   string `json:"p"`
	ProviderID string `json:"pid"`
	Name       string `json:"n,omitempty"`
	Email      string `json:"e,omitempty"`
	IssuedAt   int64  `json:"iat"`
	ExpiresAt  int64  `json:"exp"`
}
