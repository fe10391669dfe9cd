package statusutil

import (
	"fmt"
	"strings"

	"hush-cli/internal/model"
)

// ParseStatus accepts a status name in any case; empty means "any".
func ParseStatus(s string) (model.Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "sent":
		return model.StatusSent, nil
	case "delivered":
		return model.StatusDelivered, nil
	case "seen", "read":
		return model.StatusSeen, nil
	default:
		return "", fmt.Errorf("invalid status: %q (expected sent|delivered|seen)", s)
	}
}

// Glyph is the compact receipt shown next to an outgoing message.
func Glyph(s model.Status) string {
	switch s {
	case model.StatusSent:
		return "✓"
	case model.StatusDelivered:
		return "✓✓"
	case model.StatusSeen:
		return "✓✓ seen"
	default:
		return ""
	}
}
