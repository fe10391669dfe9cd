package store

import (
	"strings"

	"github.com/google/uuid"
)

// NewMessageID returns msg-<uuidv7>. v7 ids sort by creation time, which keeps
// ids readable in logs next to createdAt.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "msg-" + uuid.NewString()
	}
	return "msg-" + id.String()
}

func IsMessageID(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "msg-") && len(s) > len("msg-")
}
