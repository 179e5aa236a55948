// Package cloud talks to the remote services behind the sync and billing
// features.
package cloud

import (
	"context"
	"time"
)

// RemoteEntry is the cloud copy of a clipboard entry. ServerID is the
// object identity; the local row id never leaves the device.
type RemoteEntry struct {
	ServerID       string    `json:"server_id"`
	Content        string    `json:"content"`
	ContentType    string    `json:"content_type"`
	ContentHash    string    `json:"content_hash"`
	SourceApp      string    `json:"source_app"`
	SourceWindow   string    `json:"source_window"`
	Timestamp      time.Time `json:"timestamp"`
	Tags           []string  `json:"tags"`
	IsPinned       bool      `json:"is_pinned"`
	OrganizationID string    `json:"organization_id"`
}

// EntryStore is the remote store the sync engine pushes to and pulls from.
type EntryStore interface {
	Put(ctx context.Context, entry RemoteEntry) error
	Get(ctx context.Context, orgID, serverID string) (*RemoteEntry, error)
	List(ctx context.Context, orgID string) ([]RemoteEntry, error)
	Delete(ctx context.Context, orgID, serverID string) error
}

// PaymentRecord is one billing event reported by the payment authority.
type PaymentRecord struct {
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentAuthority reports billing state for a Firebase identity.
type PaymentAuthority interface {
	Payments(ctx context.Context, firebaseUID string) ([]PaymentRecord, error)
}
