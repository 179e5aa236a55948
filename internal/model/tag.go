package model

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

// Tag is a user-defined label, scoped to one organization. Entries reference
// tags by name; the name is the join key, ids exist only for tag CRUD.
type Tag struct {
	ID             int64     `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TagUsage pairs a tag with the number of entries currently carrying it.
type TagUsage struct {
	Tag
	UsageCount int64 `json:"usage_count"`
}

const MaxTagNameLength = 50

var hexColorRe = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// ValidTagName reports whether the trimmed name is 1..50 characters.
func ValidTagName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed != "" && len(trimmed) <= MaxTagNameLength
}

// ValidTagColor accepts "#RRGGBB" or "RRGGBB".
func ValidTagColor(color string) bool {
	return hexColorRe.MatchString(strings.TrimSpace(color))
}

// FormatTagColor normalizes a color to the "#RRGGBB" form.
func FormatTagColor(color string) string {
	color = strings.TrimSpace(color)
	if strings.HasPrefix(color, "#") {
		return color
	}
	return "#" + color
}

// RandomTagColor picks a color for tags created without one.
func RandomTagColor() string {
	return fmt.Sprintf("#%06x", rand.Uint32()&0xFFFFFF)
}
