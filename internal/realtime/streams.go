package realtime

import "strings"

// Named realtime streams used across the platform.
const (
	// StreamNotifications carries per-user in-app notices.
	StreamNotifications = "notifications"

	consultationStreamPrefix = "consultation."
)

// ConsultationStream returns the stream name for a session, keyed by the
// opaque session token so row IDs never reach the wire.
func ConsultationStream(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return ""
	}
	return consultationStreamPrefix + token
}

// ConsultationToken extracts the session token from a room stream name,
// or "" when the stream is not a consultation stream.
func ConsultationToken(stream string) string {
	if !IsConsultationStream(stream) {
		return ""
	}
	return strings.TrimPrefix(stream, consultationStreamPrefix)
}

// IsConsultationStream reports whether the stream addresses a session room.
func IsConsultationStream(stream string) bool {
	return strings.HasPrefix(stream, consultationStreamPrefix) &&
		len(stream) > len(consultationStreamPrefix)
}
