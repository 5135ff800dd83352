package members

// Session is the per request authorization state holder. It is constructed
// explicitly for each request from the raw cookie value and discarded when the
// request completes; there is no ambient registry to look it up from.
type Session struct {
	codec         *TokenCodec
	logger        Logger
	authorization *Authorization
	transitional  *TransitionalRegistration
}

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

// WithSessionLogger overrides the session logger.
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession builds the request session from the incoming cookie value. An
// empty value is the anonymous state. A value that fails to decode, expired
// or tampered, degrades to anonymous as well: cookie problems are never
// surfaced to the member as errors.
func NewSession(codec *TokenCodec, rawCookie string, opts ...SessionOption) *Session {
	s := &Session{
		codec:  codec,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if rawCookie == "" {
		return s
	}

	record, err := codec.Decode(rawCookie)
	if err != nil {
		s.logger.Debug("session cookie did not decode, treating request as anonymous", "error", err)
		return s
	}

	s.authorization = record
	return s
}

// HasAuthorization reports whether the session carries a live authorization.
func (s *Session) HasAuthorization() bool {
	return s.authorization != nil
}

// GetAuthorization returns the current authorization record, or nil for an
// anonymous session.
func (s *Session) GetAuthorization() *Authorization {
	return s.authorization
}

// SetAuthorization mints a fresh authorization for the account and marks the
// session as having a pending cookie to emit.
func (s *Session) SetAuthorization(account *Account) error {
	record, err := s.codec.Mint(account)
	if err != nil {
		return err
	}

	s.authorization = record
	return nil
}

// Clear marks the session unauthenticated. The pending state is "cookie must
// be cleared": a previously valid cookie never survives past Clear.
func (s *Session) Clear() {
	s.authorization = nil
}

// IsTransitional reports whether the session holds provider registration data
// but no committed account yet. Registration forms use this to relax password
// requirements, since a provider already vouched for the identity.
func (s *Session) IsTransitional() bool {
	return s.transitional != nil && s.authorization == nil
}

// SetTransitional attaches a provider handoff payload to the session.
func (s *Session) SetTransitional(t *TransitionalRegistration) {
	s.transitional = t
}

// Transitional returns the pending provider payload without consuming it.
func (s *Session) Transitional() *TransitionalRegistration {
	return s.transitional
}

// ConsumeTransitional returns the pending provider payload and removes it
// from the session. A second call returns nil: the payload is single use and
// cannot seed a second account.
func (s *Session) ConsumeTransitional() *TransitionalRegistration {
	t := s.transitional
	s.transitional = nil
	return t
}
