package activity

import (
	"strings"

	"golang.org/x/text/cases"
)

type replyRule struct {
	keywords []string
	reply    string
}

// Checked in order; the first rule with a matching keyword wins.
var replyRules = []replyRule{
	{keywords: []string{"thank", "thx"}, reply: "Anytime! 😊"},
	{keywords: []string{"bye", "good night", "see you"}, reply: "Talk soon! 👋"},
	{keywords: []string{"how are you", "how's it going"}, reply: "Doing well, thanks for asking. You?"},
	{keywords: []string{"sorry"}, reply: "No worries at all."},
	{keywords: []string{"lunch", "dinner", "coffee"}, reply: "I'm in. What time works?"},
	{keywords: []string{"?"}, reply: "Good question, let me think about it."},
	{keywords: []string{"hello", "hey", "hi"}, reply: "Hey! 👋 What's up?"},
}

const fallbackReply = "Got it 👍"

// PickReply chooses the canned reply for a user's message. Matching is a
// case-insensitive substring test.
func PickReply(text string) string {
	// Casers are stateful and must not be shared across goroutines.
	fold := cases.Fold()
	t := fold.String(text)
	for _, r := range replyRules {
		for _, kw := range r.keywords {
			if strings.Contains(t, fold.String(kw)) {
				return r.reply
			}
		}
	}
	return fallbackReply
}
