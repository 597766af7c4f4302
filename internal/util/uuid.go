package util

import (
	"github.com/google/uuid"
)

// GenerateUUID returns a random version 4 UUID.
func GenerateUUID() string {
	return uuid.NewString()
}
