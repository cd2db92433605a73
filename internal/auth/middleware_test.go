package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/revisionrag/internal/identity"
)

func serve(m *JWTMiddleware, header string) (*httptest.ResponseRecorder, string) {
	var seen string
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = identity.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthenticate_ValidToken(t *testing.T) {
	m := NewJWTMiddleware("secret", "revisionrag")
	token, err := m.Issue("user-42", "s@example.com", time.Hour)
	require.NoError(t, err)

	rec, userID := serve(m, "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-42", userID)
}

func TestAuthenticate_Rejects(t *testing.T) {
	m := NewJWTMiddleware("secret", "revisionrag")
	other := NewJWTMiddleware("other-secret", "revisionrag")
	wrongIssuer := NewJWTMiddleware("secret", "someone-else")

	forged, _ := other.Issue("user-42", "", time.Hour)
	expired, _ := m.Issue("user-42", "", -time.Minute)
	foreign, _ := wrongIssuer.Issue("user-42", "", time.Hour)
	noSubject, _ := m.Issue("", "", time.Hour)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42", Issuer: "revisionrag"},
	}).SignedString([]byte("secret"))

	cases := map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"garbage":    "Bearer not-a-token",
		"forged":     "Bearer " + forged,
		"expired":    "Bearer " + expired,
		"issuer":     "Bearer " + foreign,
		"no subject": "Bearer " + noSubject,
		"no expiry":  "Bearer " + noExpiry,
	}
	for name, header := range cases {
		rec, userID := serve(m, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Empty(t, userID, name)
	}
}
