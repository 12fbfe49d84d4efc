package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor is the keyset position after which the next page starts.
type Cursor struct {
	ID        string
	UpdatedAt time.Time
}

// Page is one slice of a keyset-ordered listing.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

// Encode returns the opaque form of a position, or "" for an empty id.
func Encode(id string, updatedAt time.Time) string {
	if id == "" {
		return ""
	}
	raw := id + "|" + updatedAt.UTC().Format(time.RFC3339Nano)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor produced by Encode. An empty string yields nil and
// the id must be a UUID.
func Decode(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	id, ts, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidCursor
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{ID: id, UpdatedAt: updatedAt}, nil
}

// ClampLimit maps a requested page size onto [1, MaxLimit]; zero or less selects DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// NewPage builds a page from up to limit+1 fetched items. The extra item
// only signals that another page exists and is dropped.
func NewPage[T any](items []T, limit int, key func(T) (string, time.Time)) Page[T] {
	if len(items) <= limit {
		return Page[T]{Items: items}
	}
	items = items[:limit]
	id, ts := key(items[len(items)-1])
	return Page[T]{Items: items, NextCursor: Encode(id, ts), HasMore: true}
}
