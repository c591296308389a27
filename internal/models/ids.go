package models

import (
	"strings"

	"github.com/google/uuid"
)

// LocalIDPrefix tags client-generated temporary ids. Records created
// offline live in this id space until the server assigns a real id; the
// two spaces are never conflated.
const LocalIDPrefix = "local-"

// NewLocalID generates a temporary id for a record created offline.
func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id belongs to the client-generated id space.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}
