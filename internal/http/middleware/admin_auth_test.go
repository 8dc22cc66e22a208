package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveAdmin(t *testing.T, secret, authHeader string) (*httptest.ResponseRecorder, string, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/appointments", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()

	var subject string
	called := false
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		subject = AdminSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, subject, called
}

func TestAdminJWT_Rejects(t *testing.T) {
	expired := signToken(t, "secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "rahim",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	noExpiry := signToken(t, "secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "rahim"})
	noSubject := signToken(t, "secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	wrongAlg := signToken(t, "secret", jwt.SigningMethodHS512, validClaims())

	cases := []struct {
		name   string
		secret string
		header string
	}{
		{"auth disabled", "", "Bearer " + signToken(t, "secret", jwt.SigningMethodHS256, validClaims())},
		{"missing header", "secret", ""},
		{"not bearer", "secret", "Basic abc"},
		{"wrong secret", "secret", "Bearer " + signToken(t, "other", jwt.SigningMethodHS256, validClaims())},
		{"expired", "secret", "Bearer " + expired},
		{"no expiry", "secret", "Bearer " + noExpiry},
		{"no subject", "secret", "Bearer " + noSubject},
		{"unexpected algorithm", "secret", "Bearer " + wrongAlg},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _, called := serveAdmin(t, tc.secret, tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestAdminJWT_ValidTokenExposesSubject(t *testing.T) {
	rec, subject, called := serveAdmin(t, "secret", "Bearer "+signToken(t, "secret", jwt.SigningMethodHS256, validClaims()))

	require.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "staff-rahim", subject)
}

func TestAdminSubject_OutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, AdminSubject(req.Context()))
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "staff-rahim",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
