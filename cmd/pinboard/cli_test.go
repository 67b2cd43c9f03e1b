package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pinboard/internal/platform"
	"github.com/aretw0/pinboard/pkg/api"
	"github.com/aretw0/pinboard/pkg/core"
)

func ptr(s string) *string { return &s }

func TestCheckFields(t *testing.T) {
	assert.NoError(t, checkFields(map[string]*string{"title": ptr("t"), "color": ptr("green")}))
	assert.NoError(t, checkFields(map[string]*string{"content": nil}))

	err := checkFields(map[string]*string{"title": ptr("  "), "color": ptr("teal")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title cannot be blank")
	assert.Contains(t, err.Error(), "color must be one of")
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	now := time.Now()
	renderTable(&buf, []core.Note{
		{ID: "n1", Title: "Groceries", Content: "milk\neggs", Color: "green", CreatedAt: now, UpdatedAt: now},
	})
	out := buf.String()
	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, "milk …")
	assert.Contains(t, out, "1 note(s)")
	assert.False(t, strings.Contains(out, "eggs"))
}

func TestSwatch(t *testing.T) {
	assert.True(t, strings.HasSuffix(swatch("red"), " red"))
	assert.Equal(t, "teal", swatch("teal"))
	for _, c := range core.Palette {
		_, ok := swatchColors[c]
		assert.True(t, ok, "missing swatch for %s", c)
	}
}

func TestAuthOptions_Disabled(t *testing.T) {
	cfg = platform.DefaultConfig()
	opts, err := authOptions(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestEncodeJSON_ExternalShape(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := core.Note{ID: "n1", Title: "t", Content: "c", Color: "red", CreatedAt: at, UpdatedAt: at}

	var buf bytes.Buffer
	require.NoError(t, encodeJSON(&buf, []api.Note{api.ToExternal(n)}))
	out := buf.String()

	assert.Contains(t, out, `"createdAt": "2024-05-01T12:00:00.000Z"`)
	assert.Contains(t, out, `"updatedAt": "2024-05-01T12:00:00.000Z"`)
	assert.NotContains(t, out, "created_at")
}
