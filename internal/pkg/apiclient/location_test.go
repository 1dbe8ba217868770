package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocation(t *testing.T) {
	loc, err := NewLocation("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, loc.BaseURL())

	loc, err = NewLocation("https://api.example.com//")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", loc.BaseURL())
	assert.Equal(t, "https://api.example.com/api/products/", loc.URL("/api/products/"))
	assert.Equal(t, "https://api.example.com/api/products/", loc.URL("api/products/"))

	_, err = NewLocation("ftp://example.com")
	assert.Error(t, err)
	_, err = NewLocation("http://")
	assert.Error(t, err)
}

func TestResolveImage(t *testing.T) {
	loc := MustLocation("http://127.0.0.1:8000/")

	tests := []struct {
		ref  string
		want string
	}{
		{"https://cdn.example.com/tent.png", "https://cdn.example.com/tent.png"},
		{"http://cdn.example.com/tent.png", "http://cdn.example.com/tent.png"},
		{"products/tent.png", "http://127.0.0.1:8000/uploads/products/tent.png"},
		{"/products/tent.png", "http://127.0.0.1:8000/uploads/products/tent.png"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, loc.ResolveImage(tt.ref))
		})
	}
}
