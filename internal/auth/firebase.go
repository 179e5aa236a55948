// Package auth verifies identity tokens and manages the local session.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// googleCertsURL serves the rotating x509 certificates Firebase signs
// ID tokens with, keyed by kid.
const googleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

// Identity is the verified subject of a Firebase ID token.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// TokenVerifier checks a Firebase ID token and extracts the identity.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

// GoogleVerifier validates RS256 Firebase ID tokens against Google's
// published certificates.
type GoogleVerifier struct {
	projectID string
	client    *http.Client
	certsURL  string

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

type VerifierOption func(*GoogleVerifier)

func WithCertsURL(url string) VerifierOption {
	return func(v *GoogleVerifier) { v.certsURL = url }
}

func WithHTTPClient(client *http.Client) VerifierOption {
	return func(v *GoogleVerifier) { v.client = client }
}

func NewGoogleVerifier(projectID string, opts ...VerifierOption) *GoogleVerifier {
	v := &GoogleVerifier{
		projectID: projectID,
		client:    &http.Client{Timeout: 10 * time.Second},
		certsURL:  googleCertsURL,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type firebaseClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Verify parses and validates the ID token. The key is selected by the
// token's kid header from the cached certificate set.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	var claims firebaseClaims
	token, err := jwt.ParseWithClaims(
		idToken,
		&claims,
		func(token *jwt.Token) (any, error) {
			kid, ok := token.Header["kid"].(string)
			if !ok {
				return nil, fmt.Errorf("auth: token missing kid header")
			}
			return v.keyFor(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid id token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("auth: id token has no subject")
	}

	return &Identity{
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}

// keyFor returns the public key for a kid, refreshing the certificate cache
// when the kid is unknown or the cache is stale.
func (v *GoogleVerifier) keyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.keys[kid]; ok && time.Since(v.fetchedAt) < time.Hour {
		return key, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building certs request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching certs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: certs endpoint returned %s", resp.Status)
	}

	var pems map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&pems); err != nil {
		return nil, fmt.Errorf("auth: decoding certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(pems))
	for id, pemData := range pems {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemData))
		if err != nil {
			continue
		}
		keys[id] = key
	}
	v.keys = keys
	v.fetchedAt = time.Now()

	key, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("auth: no certificate for kid %q", kid)
	}
	return key, nil
}
