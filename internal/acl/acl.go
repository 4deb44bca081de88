// Package acl implements owner authorization over incoming turn envelopes.
package acl

import (
	"strconv"
	"strings"

	"github.com/arcthur/brewva/internal/domain"
)

// Mode is the ACL posture applied when the owners list is empty.
type Mode string

const (
	ModeOpen   Mode = "open"
	ModeClosed Mode = "closed"
)

// normalizeIdentity strips an optional leading "@" and lower-cases.
func normalizeIdentity(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "@")
	return strings.ToLower(s)
}

// IsOwnerAuthorized reports whether turn's sender matches one of owners.
//
// Rules (fail-closed on missing identity is intentional):
//   - owners empty, mode=open   -> allow
//   - owners empty, mode=closed -> deny
//   - owners non-empty: deny unless senderId or senderUsername matches one
//     of owners (username match is case-insensitive, leading "@" optional on
//     both sides; numeric senderId is coerced to its decimal string). If
//     neither identity field is present, deny regardless of mode.
func IsOwnerAuthorized(turn domain.Turn, owners []string, mode Mode) bool {
	if len(owners) == 0 {
		return mode == ModeOpen
	}

	senderID := strings.TrimSpace(turn.Meta.SenderID)
	senderUsername := strings.TrimSpace(turn.Meta.SenderUsername)
	if senderID == "" && senderUsername == "" {
		return false
	}

	normalizedOwners := make([]string, len(owners))
	for i, o := range owners {
		normalizedOwners[i] = normalizeIdentity(o)
	}

	normalizedSenderID := normalizeNumericID(senderID)
	normalizedUsername := normalizeIdentity(senderUsername)

	for _, owner := range normalizedOwners {
		if senderID != "" && owner == normalizedSenderID {
			return true
		}
		if senderUsername != "" && owner == normalizedUsername {
			return true
		}
	}
	return false
}

// normalizeNumericID coerces a numeric-looking ID to its decimal string;
// non-numeric IDs pass through as-is (already a string identity).
func normalizeNumericID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "@")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return strings.ToLower(s)
}
