package members_test

import (
	"testing"
	"time"

	members "github.com/goliatone/go-members"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionWriterSetsCookieForAuthorizedSession(t *testing.T) {
	writer := members.NewSessionWriter(members.CookieAuthorization)

	session := members.NewSession(newTestCodec(), "")
	require.NoError(t, session.SetAuthorization(&members.Account{ID: uuid.New()}))
	cookie := session.GetAuthorization().Cookie

	ctx := router.NewMockContext()
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == members.CookieAuthorization &&
			c.Value == cookie &&
			c.HTTPOnly &&
			c.Expires.After(time.Now())
	})).Return()

	writer.WriteAuthorizationCookie(ctx, session)
	ctx.AssertExpectations(t)
}

func TestSessionWriterClearsCookieForAnonymousSession(t *testing.T) {
	writer := members.NewSessionWriter(members.CookieAuthorization)

	session := members.NewSession(newTestCodec(), "")

	ctx := router.NewMockContext()
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == members.CookieAuthorization &&
			c.Value == "" &&
			c.Expires.Before(time.Now())
	})).Return()

	writer.WriteAuthorizationCookie(ctx, session)
	ctx.AssertExpectations(t)
}

func TestSessionWriterClearsCookieAfterSessionClear(t *testing.T) {
	writer := members.NewSessionWriter(members.CookieAuthorization)

	// a previously authorized session that logged out mid request must end
	// with a cleared cookie, not a stale one
	session := members.NewSession(newTestCodec(), "")
	require.NoError(t, session.SetAuthorization(&members.Account{ID: uuid.New()}))
	session.Clear()

	ctx := router.NewMockContext()
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == members.CookieAuthorization &&
			c.Value == "" &&
			c.Expires.Before(time.Now())
	})).Return()

	writer.WriteAuthorizationCookie(ctx, session)
	ctx.AssertExpectations(t)
}

func TestSessionWriterClearsCookieForNilSession(t *testing.T) {
	writer := members.NewSessionWriter("")

	ctx := router.NewMockContext()
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == members.CookieAuthorization && c.Value == ""
	})).Return()

	writer.WriteAuthorizationCookie(ctx, nil)
	ctx.AssertExpectations(t)
}

func TestSessionWriterReadAuthorizationCookie(t *testing.T) {
	writer := members.NewSessionWriter(members.CookieAuthorization)

	ctx := router.NewMockContext()
	ctx.On("Cookies", members.CookieAuthorization).Return("raw-cookie-value")

	assert.Equal(t, "raw-cookie-value", writer.ReadAuthorizationCookie(ctx))
	ctx.AssertExpectations(t)
}

func TestSessionWriterWriteTransitionalCookie(t *testing.T) {
	writer := members.NewSessionWriter(members.CookieAuthorization)

	ctx := router.NewMockContext()
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == members.CookieTransitional &&
			c.Value == "encoded-payload" &&
			c.HTTPOnly &&
			c.Expires.After(time.Now())
	})).Return()

	writer.WriteTransitionalCookie(ctx, "encoded-payload", 10*time.Minute)
	ctx.AssertExpectations(t)
}
