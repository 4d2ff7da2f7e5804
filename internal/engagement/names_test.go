package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		session  string
		expected string
	}{
		{"opaque id prefers session", "user_8f3a2b1c", "Alex", "Alex"},
		{"email truncated without session", "jane@example.com", "", "jane"},
		{"email truncated even with session", "jane@example.com", "Alex", "jane"},
		{"placeholder User", "User", "Alex", "Alex"},
		{"placeholder guest lower case", "guest", "Alex", "Alex"},
		{"empty stored", "", "Alex", "Alex"},
		{"real name kept", "Jane Doe", "Alex", "Jane Doe"},
		{"uuid is opaque", "7c9e6679-7425-40de-944b-e07fc1f90ae7", "Alex", "Alex"},
		{"opaque without session", "guest_123", "", "Anonymous"},
		{"placeholder without session is shown as stored", "User", "", "User"},
		{"nothing known", "", "", "Anonymous"},
		{"bare @ falls through", "@example.com", "Alex", "Alex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveDisplayName(tt.stored, tt.session, DefaultAuthorLabel))
		})
	}
}
