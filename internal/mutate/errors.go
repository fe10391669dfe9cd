package mutate

import "errors"

var (
	// ErrEmptyText is returned when a send carries no visible text.
	ErrEmptyText = errors.New("message text is empty")
	// ErrNotEditable is returned when editing someone else's message or a tombstone.
	ErrNotEditable = errors.New("message is not editable")
	// ErrUnknownConversation is returned when sending to a conversation that does not exist.
	ErrUnknownConversation = errors.New("unknown conversation")
)
