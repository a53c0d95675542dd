// Package ids centralizes identifier generation so every aggregate uses the
// same underlying scheme. Row identifiers that benefit from insertion
// locality use UUID v7 (time ordered); identifiers with no natural temporal
// ordering use v4.
package ids

import "github.com/google/uuid"

// NewV7 generates a time-ordered UUID suitable for primary keys that benefit
// from insertion locality (attempts, decisions, device commands). Falls back
// to a v4 UUID if entropy/time source generation fails.
func NewV7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewV4 generates a random UUID, used for identifiers with no natural
// temporal ordering (rule ids, the process instance id).
func NewV4() string {
	return uuid.NewString()
}
