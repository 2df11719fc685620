package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()

	a, err := New(Config{
		Secret:     "test-secret-key-with-enough-length",
		Issuer:     "orderapi",
		Audience:   "orderapi-clients",
		Expiration: time.Hour,
		Username:   "admin",
		Password:   "admin123",
	})
	require.NoError(t, err)
	return a
}

func TestAuthenticator_LoginAndValidate(t *testing.T) {
	t.Parallel()

	a := newTestAuthenticator(t)
	token, err := a.Login("admin", "admin123")
	require.NoError(t, err)
	require.Equal(t, "admin", token.Username)
	require.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	subject, err := a.Validate(token.Token)
	require.NoError(t, err)
	require.Equal(t, "admin", subject)
}

func TestAuthenticator_RejectsBadCredentials(t *testing.T) {
	t.Parallel()

	a := newTestAuthenticator(t)
	for _, tc := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"root", "admin123"},
		{"", ""},
	} {
		_, err := a.Login(tc.user, tc.pass)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestAuthenticator_RejectsInvalidTokens(t *testing.T) {
	t.Parallel()

	a := newTestAuthenticator(t)
	token, err := a.Login("admin", "admin123")
	require.NoError(t, err)

	_, err = a.Validate("")
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = a.Validate("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = a.Validate(token.Token + "x")
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := New(Config{Secret: "another-secret", Issuer: "orderapi", Audience: "orderapi-clients", Username: "admin", Password: "admin123"})
	require.NoError(t, err)
	_, err = other.Validate(token.Token)
	require.ErrorIs(t, err, ErrInvalidToken, "signature with another secret")

	wrongAudience, err := New(Config{Secret: "test-secret-key-with-enough-length", Issuer: "orderapi", Audience: "someone-else"})
	require.NoError(t, err)
	_, err = wrongAudience.Validate(token.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "admin"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Validate(none)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_RejectsExpiredToken(t *testing.T) {
	t.Parallel()

	a := newTestAuthenticator(t)
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := a.Login("admin", "admin123")
	require.NoError(t, err)

	a.now = time.Now
	_, err = a.Validate(token.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNew_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Secret: "  "})
	require.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	token, ok := BearerToken("Bearer abc.def")
	require.True(t, ok)
	require.Equal(t, "abc.def", token)

	token, ok = BearerToken("bearer   xyz ")
	require.True(t, ok)
	require.Equal(t, "xyz", token)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		_, ok := BearerToken(header)
		require.False(t, ok, header)
	}
}

func TestSubjectContext(t *testing.T) {
	t.Parallel()

	_, ok := SubjectFrom(context.Background())
	require.False(t, ok)

	subject, ok := SubjectFrom(WithSubject(context.Background(), "admin"))
	require.True(t, ok)
	require.Equal(t, "admin", subject)
}
