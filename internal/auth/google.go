package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/cliptray/cliptrayd/internal/apperror"
)

const defaultUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization Code
// flow with PKCE. The desktop client opens the returned URL in a browser and
// the loopback redirect delivers the code back to the daemon. Code verifiers
// are keyed by state so overlapping login attempts do not clobber each other.
type GoogleProvider struct {
	config      *oauth2.Config
	client      *http.Client
	userinfoURL string

	mu        sync.Mutex
	verifiers map[string]string
}

type ProviderOption func(*GoogleProvider)

func WithProviderEndpoint(endpoint oauth2.Endpoint) ProviderOption {
	return func(p *GoogleProvider) { p.config.Endpoint = endpoint }
}

func WithUserinfoURL(url string) ProviderOption {
	return func(p *GoogleProvider) { p.userinfoURL = url }
}

func WithProviderClient(client *http.Client) ProviderOption {
	return func(p *GoogleProvider) { p.client = client }
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string, opts ...ProviderOption) *GoogleProvider {
	p := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		client:      http.DefaultClient,
		userinfoURL: defaultUserinfoURL,
		verifiers:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthURL starts a new PKCE exchange and returns the browser URL. The code
// verifier is held under the state until Exchange consumes it.
func (p *GoogleProvider) AuthURL(state string) string {
	verifier := oauth2.GenerateVerifier()
	p.mu.Lock()
	p.verifiers[state] = verifier
	p.mu.Unlock()
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange trades the authorization code for tokens and resolves the identity
// through the userinfo endpoint. The state's verifier is consumed either way,
// so a code can be tried at most once.
func (p *GoogleProvider) Exchange(ctx context.Context, state, code string) (*Identity, error) {
	p.mu.Lock()
	verifier, ok := p.verifiers[state]
	delete(p.verifiers, state)
	p.mu.Unlock()
	if !ok {
		return nil, apperror.ValidationFailed("state", "unknown or expired login attempt")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	tok, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging code: %w", err)
	}
	return p.userinfo(ctx, tok.AccessToken)
}

func (p *GoogleProvider) userinfo(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: userinfo returned %s", resp.Status)
	}

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("auth: decoding userinfo: %w", err)
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("auth: userinfo response has no subject")
	}

	return &Identity{UID: claims.Sub, Email: claims.Email, DisplayName: claims.Name}, nil
}
