package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRequestID(t *testing.T) {
	// Test that request IDs are generated
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	assert.NotEmpty(t, id1)
	assert.NotEmpty(t, id2)
	assert.NotEqual(t, id1, id2)

	// Test that IDs are expected length (14 timestamp + 1 dash + 8 random = 23)
	assert.Equal(t, 23, len(id1))
	assert.Equal(t, 23, len(id2))
}

func TestRandomString(t *testing.T) {
	for length := 1; length <= 20; length++ {
		result := RandomString(length)
		assert.Equal(t, length, len(result))

		for _, char := range result {
			assert.Contains(t, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", string(char))
		}
	}
	assert.Empty(t, RandomString(0))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"already normal", "https://acme.com", "https://acme.com"},
		{"trailing slash", "https://acme.com/", "https://acme.com"},
		{"mixed case host", "HTTPS://WWW.Acme.COM/Products", "https://www.acme.com/Products"},
		{"fragment dropped", "https://acme.com/pricing#plans", "https://acme.com/pricing"},
		{"query kept", "https://acme.com/?ref=ad", "https://acme.com?ref=ad"},
		{"surrounding space", "  https://acme.com/about/  ", "https://acme.com/about"},
		{"not a URL", "Acme Corp", "acme corp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeURL(tt.input))
		})
	}
}

func TestIsHTTPURL(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"https://acme.com", true},
		{"http://acme.com/path?q=1", true},
		{"ftp://acme.com", false},
		{"acme.com", false},
		{"/relative/path", false},
		{"https://", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsHTTPURL(tt.input))
		})
	}
}
