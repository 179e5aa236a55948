package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProject = "cliptray-test"

type certFixture struct {
	key *rsa.PrivateKey
	srv *httptest.Server
}

func newCertFixture(t *testing.T) *certFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"test-kid": pubPEM})
	}))
	t.Cleanup(srv.Close)

	return &certFixture{key: key, srv: srv}
}

func (f *certFixture) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-kid"
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func baseClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":   "uid-123",
		"email": "user@example.com",
		"name":  "Test User",
		"aud":   testProject,
		"iss":   "https://securetoken.google.com/" + testProject,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

func TestVerifyValidToken(t *testing.T) {
	f := newCertFixture(t)
	v := NewGoogleVerifier(testProject, WithCertsURL(f.srv.URL))

	identity, err := v.Verify(context.Background(), f.sign(t, baseClaims()))
	require.NoError(t, err)
	assert.Equal(t, "uid-123", identity.UID)
	assert.Equal(t, "user@example.com", identity.Email)
	assert.Equal(t, "Test User", identity.DisplayName)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	f := newCertFixture(t)
	v := NewGoogleVerifier(testProject, WithCertsURL(f.srv.URL))

	claims := baseClaims()
	claims["aud"] = "other-project"
	_, err := v.Verify(context.Background(), f.sign(t, claims))
	assert.Error(t, err)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	f := newCertFixture(t)
	v := NewGoogleVerifier(testProject, WithCertsURL(f.srv.URL))

	claims := baseClaims()
	claims["iss"] = "https://securetoken.google.com/other-project"
	_, err := v.Verify(context.Background(), f.sign(t, claims))
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	f := newCertFixture(t)
	v := NewGoogleVerifier(testProject, WithCertsURL(f.srv.URL))

	claims := baseClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	_, err := v.Verify(context.Background(), f.sign(t, claims))
	assert.Error(t, err)
}

func TestVerifyRejectsUnknownKid(t *testing.T) {
	f := newCertFixture(t)
	v := NewGoogleVerifier(testProject, WithCertsURL(f.srv.URL))

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, baseClaims())
	token.Header["kid"] = "rotated-away"
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	assert.Error(t, err)
}
