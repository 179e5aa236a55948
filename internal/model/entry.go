// Package model defines the data structures shared across the daemon.
package model

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Sync status values for locally stored rows.
const (
	SyncStatusLocal  = "local"  // row has changes not yet pushed to the cloud
	SyncStatusSynced = "synced" // row matches the cloud copy
)

// ClipboardEntry is one clipboard-history record.
//
// Tags are stored as a canonical ordered set of tag names. The wire and
// storage representation is a JSON array; NormalizeTags owns the conversion
// from the legacy shapes (null, bare string, JSON-encoded string) so no
// caller ever has to defensively parse tag payloads.
type ClipboardEntry struct {
	ID             int64     `json:"id"`
	Content        string    `json:"content"`
	ContentType    string    `json:"content_type"`
	ContentHash    string    `json:"content_hash"`
	SourceApp      string    `json:"source_app"`
	SourceWindow   string    `json:"source_window"`
	Timestamp      time.Time `json:"timestamp"`
	CreatedAt      time.Time `json:"created_at"`
	Tags           []string  `json:"tags"`
	IsPinned       bool      `json:"is_pinned"`
	OrganizationID string    `json:"organization_id"`
	SyncStatus     string    `json:"sync_status"`
	ServerID       string    `json:"server_id,omitempty"`
}

// HasTag reports whether the entry carries the given tag name.
func (e *ClipboardEntry) HasTag(name string) bool {
	for _, t := range e.Tags {
		if t == name {
			return true
		}
	}
	return false
}

// NewClipboardEntry carries the fields of an entry about to be created.
type NewClipboardEntry struct {
	Content        string   `json:"content"`
	ContentType    string   `json:"content_type"`
	SourceApp      string   `json:"source_app"`
	SourceWindow   string   `json:"source_window"`
	Tags           []string `json:"tags"`
	OrganizationID string   `json:"organization_id"`
}

// EntryUpdate is a partial update. Nil fields are left untouched. Changing
// the content re-derives the hash and content type; timestamps and
// provenance stay immutable.
type EntryUpdate struct {
	Content  *string  `json:"content,omitempty"`
	IsPinned *bool    `json:"is_pinned,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// HashContent computes the dedupe hash for a clipboard payload.
func HashContent(content string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(content)))
}

// DetectContentType classifies a clipboard payload for display purposes.
func DetectContentType(content string) string {
	switch {
	case strings.HasPrefix(content, "http://") || strings.HasPrefix(content, "https://"):
		return "url"
	case strings.Contains(content, "@") && strings.Contains(content, "."):
		return "email"
	case isNumeric(content):
		return "numeric"
	default:
		return "text"
	}
}

func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// NormalizeTags builds the canonical tag set: trimmed, de-duplicated,
// sorted, empty names dropped. Always returns a non-nil slice.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseTagsColumn decodes the stored tags column. Legacy rows may hold NULL,
// a JSON array, a doubly-encoded JSON string, or a bare tag name; all shapes
// collapse to the canonical set here, at the storage boundary.
func ParseTagsColumn(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []string{}
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil {
			return NormalizeTags(tags)
		}
		return []string{}
	}
	if strings.HasPrefix(raw, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err == nil {
			return ParseTagsColumn(inner)
		}
		return []string{}
	}
	return NormalizeTags([]string{raw})
}

// EncodeTagsColumn serializes the canonical tag set for storage.
func EncodeTagsColumn(tags []string) string {
	b, err := json.Marshal(NormalizeTags(tags))
	if err != nil {
		return "[]"
	}
	return string(b)
}
