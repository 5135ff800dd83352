package members

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// AuthorizationClaims are the JWT claims embedded in the authorization cookie.
type AuthorizationClaims struct {
	jwt.RegisteredClaims
	GUID string `json:"guid,omitempty"`
}

// TokenCodec is the reversible, tamper evident mapping between an
// Authorization and the opaque cookie value. Pure over the provided key
// material; expiry is embedded at encode time and enforced at decode time.
type TokenCodec struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
}

// NewTokenCodec creates a new TokenCodec. tokenExpiration is in hours.
func NewTokenCodec(signingKey []byte, tokenExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenCodec {
	if logger == nil {
		logger = defLogger{}
	}
	if tokenExpiration <= 0 {
		tokenExpiration = 24
	}
	return &TokenCodec{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        audience,
		logger:          logger,
	}
}

// NewTokenCodecFromConfig creates a TokenCodec from the shared configuration.
func NewTokenCodecFromConfig(cfg Config, logger Logger) *TokenCodec {
	return NewTokenCodec(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		jwt.ClaimStrings(cfg.GetAudience()),
		logger,
	)
}

// TokenExpiration returns the configured token lifetime.
func (tc *TokenCodec) TokenExpiration() time.Duration {
	return time.Duration(tc.tokenExpiration) * time.Hour
}

// Mint creates a fresh Authorization for the given account, with the encoded
// cookie payload attached.
func (tc *TokenCodec) Mint(account *Account) (*Authorization, error) {
	if account == nil {
		return nil, errors.New("account must not be nil", errors.CategoryInternal)
	}

	now := time.Now()
	expires := now.Add(tc.TokenExpiration())

	record := &Authorization{
		GUID:      account.GUID(),
		IssuedAt:  &now,
		ExpiresAt: &expires,
	}

	token, err := tc.Encode(record)
	if err != nil {
		return nil, err
	}

	record.Cookie = token
	return record, nil
}

// Encode signs the record into an opaque cookie value.
func (tc *TokenCodec) Encode(record *Authorization) (string, error) {
	if record == nil || record.GUID == "" {
		return "", errors.New("authorization record must carry a guid", errors.CategoryInternal)
	}

	now := time.Now()
	issuedAt := now
	if record.IssuedAt != nil {
		issuedAt = *record.IssuedAt
	}
	expiresAt := issuedAt.Add(tc.TokenExpiration())
	if record.ExpiresAt != nil {
		expiresAt = *record.ExpiresAt
	}

	claims := &AuthorizationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tc.issuer,
			Subject:   record.GUID,
			Audience:  tc.audience,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		GUID: record.GUID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(tc.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign authorization token")
	}

	return signed, nil
}

// Decode verifies the cookie value and rebuilds the Authorization. It fails
// with ErrTokenExpired past the embedded window and ErrTokenMalformed for
// anything else that does not verify. An absent cookie is not a decode
// concern; callers treat it as the anonymous state before reaching here.
func (tc *TokenCodec) Decode(tokenString string) (*Authorization, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if tc.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(tc.issuer))
	}
	if len(tc.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(tc.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AuthorizationClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			tc.logger.Error("TokenCodec decode encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tc.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*AuthorizationClaims)
	if !ok || !token.Valid {
		tc.logger.Error("TokenCodec decode could not map claims")
		return nil, ErrTokenMalformed
	}

	guid := claims.GUID
	if guid == "" {
		guid = claims.Subject
	}
	if guid == "" {
		return nil, ErrTokenMalformed
	}

	record := &Authorization{
		GUID:   guid,
		Cookie: tokenString,
	}

	if claims.IssuedAt != nil {
		issuedAt := claims.IssuedAt.Time
		record.IssuedAt = &issuedAt
	}
	if claims.ExpiresAt != nil {
		expiresAt := claims.ExpiresAt.Time
		record.ExpiresAt = &expiresAt
	}

	return record, nil
}
