package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLibraryNameIsSafe(t *testing.T) {
	tests := []struct {
		name string
		safe bool
	}{
		{"mylib", true},
		{"jakarta.faces", true},
		{"lib-1_2", true},
		{"../evil", false},
		{"%2e%2e/evil", false},
		{`..\evil`, false},
		{".hidden", false},
		{"%2E%2E%2Fevil", false},
		{"a/b", false},
		{`a\b`, false},
		{"a%2fb", false},
		{"a%5Cb", false},
		{`\u002e\u002eevil`, false},
		{`a\u002fb`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.safe, LibraryNameIsSafe(tt.name))
		})
	}
}

func TestNameContainsForbiddenSequence(t *testing.T) {
	tests := []struct {
		name      string
		forbidden bool
	}{
		{"", false},
		{"style.css", false},
		{"images/logo.png", false},
		{"de_DE", false},
		{"..", true},
		{"../secret", true},
		{"images/../../secret", true},
		{"/etc/passwd", true},
		{`\windows`, true},
		{"images/", true},
		{"%2e%2e%2fsecret", true},
		{"a/%2E%2E/b", true},
		{".htaccess", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.forbidden, NameContainsForbiddenSequence(tt.name))
		})
	}
}
