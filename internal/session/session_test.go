package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/manga-pulse/internal/session"
)

func TestContextDefaultsToGuest(t *testing.T) {
	id := session.FromContext(context.Background())
	require.False(t, id.Authenticated())
	require.Equal(t, "guest", id.String())

	ctx := session.WithIdentity(context.Background(), session.User("u-1"))
	require.Equal(t, session.User("u-1"), session.FromContext(ctx))
}

func TestTrackerNotifiesOnTransitionsOnly(t *testing.T) {
	tr := session.NewTracker()
	var seen []session.Identity
	tr.Subscribe(func(id session.Identity) { seen = append(seen, id) })

	tr.SignOut()
	tr.SignIn("u-1")
	tr.SignIn("u-1")
	tr.SignIn("u-2")
	tr.SignOut()

	require.Equal(t, []session.Identity{session.User("u-1"), session.User("u-2"), session.Guest}, seen)
	require.Equal(t, session.Guest, tr.Current())
}

func TestTrackerContext(t *testing.T) {
	tr := session.NewTracker()
	tr.SignIn("u-9")
	require.Equal(t, "u-9", session.FromContext(tr.Context(context.Background())).UserID)
}

func sign(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	v := session.NewVerifier("secret", "mangapulse-idp")
	tok := sign(t, "secret", jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    "mangapulse-idp",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	id, err := v.FromAuthorization("Bearer " + tok)
	require.NoError(t, err)
	require.Equal(t, session.User("user-42"), id)
}

func TestVerifierRejections(t *testing.T) {
	v := session.NewVerifier("secret", "mangapulse-idp")
	valid := jwt.RegisteredClaims{Subject: "u", Issuer: "mangapulse-idp", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	noSubject := valid
	noSubject.Subject = ""

	cases := map[string]string{
		"bad signature": "Bearer " + sign(t, "other", valid),
		"expired":       "Bearer " + sign(t, "secret", expired),
		"wrong issuer":  "Bearer " + sign(t, "secret", wrongIssuer),
		"no subject":    "Bearer " + sign(t, "secret", noSubject),
		"not bearer":    "Basic abc",
		"garbage":       "Bearer not-a-jwt",
	}
	for name, header := range cases {
		_, err := v.FromAuthorization(header)
		require.True(t, errors.Is(err, session.ErrInvalidToken), name)
	}
}

func TestVerifierEmptyHeaderIsGuest(t *testing.T) {
	v := session.NewVerifier("", "")
	id, err := v.FromAuthorization("")
	require.NoError(t, err)
	require.Equal(t, session.Guest, id)

	_, err = v.FromAuthorization("Bearer abc")
	require.ErrorIs(t, err, session.ErrInvalidToken)
}
