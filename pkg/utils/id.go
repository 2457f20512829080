package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID generates a new UUID v4
func GenerateID() string {
	return uuid.New().String()
}

// IsValidUUID checks if a string is a valid UUID
func IsValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GenerateTrackingNumber builds a customer-facing tracking number of the
// form QH-XXXXXXXXXXXX, derived from a fresh UUID.
func GenerateTrackingNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "QH-" + strings.ToUpper(raw[:12])
}
