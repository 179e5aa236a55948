package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cliptray/cliptrayd/internal/apperror"
)

var _ PaymentAuthority = (*HTTPPaymentAuthority)(nil)

// HTTPPaymentAuthority fetches billing state from the payments backend.
type HTTPPaymentAuthority struct {
	client  *http.Client
	baseURL string
}

func NewHTTPPaymentAuthority(baseURL string) *HTTPPaymentAuthority {
	return &HTTPPaymentAuthority{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

// Payments returns the billing events recorded for a Firebase identity.
func (a *HTTPPaymentAuthority) Payments(ctx context.Context, firebaseUID string) ([]PaymentRecord, error) {
	endpoint := fmt.Sprintf("%s/v1/payments?uid=%s", a.baseURL, url.QueryEscape(firebaseUID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cloud: building payments request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperror.Unavailable("payments backend")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("cloud: payments backend returned %s", resp.Status)
	}

	var payload struct {
		Payments []PaymentRecord `json:"payments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("cloud: decoding payments response: %w", err)
	}
	return payload.Payments, nil
}
