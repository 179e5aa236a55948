package model

import (
	"fmt"
	"strings"
	"time"
)

// Plan is the subscription tier gating pin count and purge-cadence options.
type Plan string

const (
	PlanFree Plan = "Free"
	PlanPro  Plan = "Pro"
)

// FreePinLimit caps concurrently pinned entries on the Free plan.
const FreePinLimit = 3

// PurgeCadence is the configured interval for automatic retention purges.
// The zero-ish default for new users is CadenceNever.
type PurgeCadence string

const (
	CadenceNever   PurgeCadence = "never"
	Cadence24Hours PurgeCadence = "every_24_hours"
	Cadence3Days   PurgeCadence = "every_3_days"
	CadenceWeek    PurgeCadence = "every_week"
	CadenceMonth   PurgeCadence = "every_month"
)

// Display returns the user-facing cadence string used on the wire.
func (c PurgeCadence) Display() string {
	switch c {
	case Cadence24Hours:
		return "Every 24 hours"
	case Cadence3Days:
		return "Every 3 days"
	case CadenceWeek:
		return "Every week"
	case CadenceMonth:
		return "Every month"
	default:
		return "Never"
	}
}

// Interval returns the purge interval and whether auto-purge applies at all.
func (c PurgeCadence) Interval() (time.Duration, bool) {
	switch c {
	case Cadence24Hours:
		return 24 * time.Hour, true
	case Cadence3Days:
		return 3 * 24 * time.Hour, true
	case CadenceWeek:
		return 7 * 24 * time.Hour, true
	case CadenceMonth:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// ParseCadence accepts storage values, display strings, and the common
// shorthand forms.
func ParseCadence(s string) (PurgeCadence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "never":
		return CadenceNever, nil
	case "every_24_hours", "24h", "24hours", "every 24 hours":
		return Cadence24Hours, nil
	case "every_3_days", "3d", "3days", "every 3 days":
		return Cadence3Days, nil
	case "every_week", "7d", "7days", "every week", "weekly":
		return CadenceWeek, nil
	case "every_month", "30d", "30days", "every month", "monthly":
		return CadenceMonth, nil
	default:
		return "", fmt.Errorf("invalid purge cadence: %q", s)
	}
}

// CadenceOptions lists the display strings offered to a plan. Free keeps the
// single non-"Never" option; Pro gets the full set.
func CadenceOptions(plan Plan) []string {
	if plan == PlanPro {
		return []string{"Never", "Every 24 hours", "Every 3 days", "Every week", "Every month"}
	}
	return []string{"Never", "Every 24 hours"}
}

// PurgeSettings is the retention configuration reported to the UI.
// Invariant: AutoPurgeEnabled == (PurgeCadence != "Never").
type PurgeSettings struct {
	AutoPurgeEnabled bool     `json:"auto_purge_enabled"`
	PurgeCadence     string   `json:"purge_cadence"`
	RetainTags       bool     `json:"retain_tags"`
	OrganizationID   string   `json:"organization_id"`
	AvailableOptions []string `json:"available_options"`
}

// User is one authenticated account, bound to a Firebase identity and an
// organization. SessionHintHash holds a bcrypt hash of the persisted
// session-restore token; the plaintext lives only in the local hint file.
type User struct {
	ID              int64        `json:"id"`
	FirebaseUID     string       `json:"firebase_uid"`
	Email           string       `json:"email"`
	DisplayName     string       `json:"display_name"`
	OrganizationID  string       `json:"organization_id"`
	PurgeCadence    PurgeCadence `json:"purge_cadence"`
	RetainTags      bool         `json:"retain_tags"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	LastLoginAt     time.Time    `json:"last_login_at"`
	SessionHintHash string       `json:"-"`
}

// UserResponse is the wire shape for auth operations; the cadence is
// serialized as its display string.
type UserResponse struct {
	ID             int64     `json:"id"`
	FirebaseUID    string    `json:"firebase_uid"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	OrganizationID string    `json:"organization_id"`
	PurgeCadence   string    `json:"purge_cadence"`
	RetainTags     bool      `json:"retain_tags"`
	CreatedAt      time.Time `json:"created_at"`
}

// Response converts a stored user into its wire shape.
func (u *User) Response() UserResponse {
	return UserResponse{
		ID:             u.ID,
		FirebaseUID:    u.FirebaseUID,
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		OrganizationID: u.OrganizationID,
		PurgeCadence:   u.PurgeCadence.Display(),
		RetainTags:     u.RetainTags,
		CreatedAt:      u.CreatedAt,
	}
}
