package repositories

import (
	"github.com/google/uuid"
)

// NewPushID returns a store-generated child key. UUIDv7 strings sort
// lexicographically in creation order, so appended children list in order.
func NewPushID() string {
	return uuid.Must(uuid.NewV7()).String()
}
