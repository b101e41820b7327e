package xid

import (
	"github.com/google/uuid"
)

// New returns a prefixed, time-ordered identifier such as "audit-0192...".
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "-" + id.String()
}
