package engagement

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultAuthorLabel is used when nothing better is known about an author.
const DefaultAuthorLabel = "Anonymous"

var placeholderNames = []string{"user", "guest"}

// Identity provider and guest ids stored in the name column by older clients
var opaqueIDPrefixes = []string{"user_", "guest_", "anon_"}

func isPlaceholderName(name string) bool {
	n := strings.TrimSpace(name)
	if n == "" {
		return true
	}
	for _, p := range placeholderNames {
		if strings.EqualFold(n, p) {
			return true
		}
	}
	return false
}

func looksOpaque(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range opaqueIDPrefixes {
		if strings.HasPrefix(n, p) {
			return true
		}
	}
	_, err := uuid.Parse(n)
	return err == nil
}

// ResolveDisplayName picks the label for an author. The order matters:
//  1. stored is a placeholder and a session name is known: session name
//  2. stored is a real name (not an opaque id): stored, cut at '@' for emails
//  3. session name
//  4. fallback
func ResolveDisplayName(stored, session, fallback string) string {
	stored = strings.TrimSpace(stored)
	session = strings.TrimSpace(session)

	if isPlaceholderName(stored) && session != "" {
		return session
	}
	if stored != "" && !looksOpaque(stored) {
		if at := strings.IndexByte(stored, '@'); at >= 0 {
			stored = strings.TrimSpace(stored[:at])
		}
		if stored != "" {
			return stored
		}
	}
	if session != "" {
		return session
	}
	return fallback
}
