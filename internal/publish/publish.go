// Package publish writes decrypted Markdown transcripts of conversations.
package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"hush-cli/internal/model"
	"hush-cli/internal/store"
)

type WriteOptions struct {
	Overwrite bool
	Render    RenderOptions
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteConversations writes <toDir>/<conversation-id>.md for each id, stopping at
// the first error.
func WriteConversations(snap *store.Snapshot, contacts func(model.Conversation) model.Contact, convIDs []string, toDir string, opt WriteOptions) (WriteResult, error) {
	if snap == nil {
		return WriteResult{}, errors.New("missing snapshot")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)
	if err := os.MkdirAll(toDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	written := []string{}
	for _, id := range convIDs {
		conv, ok := snap.FindConversation(strings.TrimSpace(id))
		if !ok {
			return WriteResult{Written: written}, errors.New("conversation not found: " + id)
		}
		md, err := RenderTranscriptMarkdown(conv, contacts(conv), snap.ConversationMessages(conv.ID), opt.Render)
		if err != nil {
			return WriteResult{Written: written}, err
		}
		p := filepath.Join(toDir, conv.ID+".md")
		if err := writeFile(p, []byte(md), opt.Overwrite); err != nil {
			return WriteResult{Written: written}, err
		}
		written = append(written, p)
	}
	return WriteResult{Written: written}, nil
}

// Transcripts are plaintext, so they are written owner-only.
func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o600)
}
