package util

import "github.com/google/uuid"

// NewID returns a prefixed random identifier such as "crd_2f1c...".
func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
