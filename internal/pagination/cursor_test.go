package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC)

	cursor := Encode("7f1c2d9e-0000-4000-8000-000000000001", ts)
	require.NotEmpty(t, cursor)

	got, err := Decode(cursor)
	require.NoError(t, err)
	assert.Equal(t, "7f1c2d9e-0000-4000-8000-000000000001", got.ID)
	assert.True(t, ts.Equal(got.UpdatedAt))
}

func TestEncode_EmptyID(t *testing.T) {
	assert.Empty(t, Encode("", time.Now()))
}

func TestDecode_Empty(t *testing.T) {
	got, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "%%%"},
		{"no separator", "anVzdGFuaWQ"},
		{"bad timestamp", "N2YxYzJkOWUtMDAwMC00MDAwLTgwMDAtMDAwMDAwMDAwMDAxfG5vdC1hLXRpbWU"},
		{"empty id", "fDIwMjYtMDEtMDFUMDA6MDA6MDBa"},
		{"id not a uuid", "bm90LWEtdXVpZHwyMDI2LTAxLTAxVDAwOjAwOjAwWg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.cursor)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxLimit, ClampLimit(MaxLimit+1))
}

type item struct {
	id string
	at time.Time
}

func itemKey(i item) (string, time.Time) { return i.id, i.at }

func TestNewPage(t *testing.T) {
	now := time.Now().UTC()
	items := []item{
		{"8c0a5e52-3b7d-4f6e-a1c2-00000000000a", now},
		{"8c0a5e52-3b7d-4f6e-a1c2-00000000000b", now.Add(-time.Second)},
		{"8c0a5e52-3b7d-4f6e-a1c2-00000000000c", now.Add(-2 * time.Second)},
	}

	t.Run("last page", func(t *testing.T) {
		page := NewPage(items, 3, itemKey)
		assert.Len(t, page.Items, 3)
		assert.False(t, page.HasMore)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("more available", func(t *testing.T) {
		page := NewPage(items, 2, itemKey)
		assert.Len(t, page.Items, 2)
		assert.True(t, page.HasMore)

		cursor, err := Decode(page.NextCursor)
		require.NoError(t, err)
		assert.Equal(t, items[1].id, cursor.ID)
	})
}
