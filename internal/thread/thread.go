// Package thread derives what a reader sees of a conversation: the paged window,
// unread messages and day grouping. Everything here is a pure function of stored data.
package thread

import (
	"sort"
	"time"

	"hush-cli/internal/model"
)

const DefaultPageSize = 20

// Slice is the visible window of one conversation.
type Slice struct {
	Messages []model.Message `json:"messages"`
	// Total counts every non-tombstoned message in the conversation.
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	HasMore bool `json:"hasMore"`
}

// Visible returns the non-tombstoned messages of a conversation, ascending by createdAt.
func Visible(messages []model.Message, convID string) []model.Message {
	out := []model.Message{}
	for _, m := range messages {
		if m.ConvID == convID && !m.Deleted {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// VisibleSlice returns the last pageSize*(page+1) visible messages. The window grows
// backward in whole pages as page increases.
func VisibleSlice(messages []model.Message, convID string, page, pageSize int) Slice {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	vis := Visible(messages, convID)
	n := pageSize * (page + 1)
	start := 0
	if len(vis) > n {
		start = len(vis) - n
	}
	return Slice{
		Messages: vis[start:],
		Total:    len(vis),
		Page:     page,
		HasMore:  start > 0,
	}
}

// Unread returns messages of the slice created after the read marker that were not
// authored by me, ascending.
func Unread(slice []model.Message, readMarker int64, me string) []model.Message {
	out := []model.Message{}
	for _, m := range slice {
		if m.Deleted || m.From == me || m.CreatedAt <= readMarker {
			continue
		}
		out = append(out, m)
	}
	return out
}

type UnreadSummary struct {
	Count int `json:"count"`
	// FirstID is the jump target: the oldest unread message in the slice.
	FirstID  string          `json:"firstId,omitempty"`
	Messages []model.Message `json:"-"`
}

func Summarize(unread []model.Message) UnreadSummary {
	s := UnreadSummary{Count: len(unread), Messages: unread}
	if len(unread) > 0 {
		s.FirstID = unread[0].ID
	}
	return s
}

// DayGroup is a contiguous run of messages from the same local calendar day.
type DayGroup struct {
	Label    string          `json:"label"`
	Day      time.Time       `json:"day"`
	Messages []model.Message `json:"messages"`
}

// GroupByDay clusters ascending messages into day bands labeled Today, Yesterday,
// or a short "Mon, Jan 2" date, evaluated in loc relative to now.
func GroupByDay(messages []model.Message, now time.Time, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	var out []DayGroup
	for _, m := range messages {
		day := startOfDay(time.UnixMilli(m.CreatedAt).In(loc))
		if n := len(out); n > 0 && out[n-1].Day.Equal(day) {
			out[n-1].Messages = append(out[n-1].Messages, m)
			continue
		}
		out = append(out, DayGroup{Label: DayLabel(day, now.In(loc)), Day: day, Messages: []model.Message{m}})
	}
	return out
}

func DayLabel(day, now time.Time) string {
	today := startOfDay(now)
	d := startOfDay(day.In(now.Location()))
	switch {
	case d.Equal(today):
		return "Today"
	case d.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return d.Format("Mon, Jan 2")
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NearBottom reports whether a scrolled view is within threshold lines of its end.
func NearBottom(offset, contentHeight, viewHeight, threshold int) bool {
	if contentHeight <= viewHeight {
		return true
	}
	return contentHeight-(offset+viewHeight) <= threshold
}

// AnchorOffset keeps the reader's anchor fixed when content is prepended above the
// current viewport: the offset shifts down by exactly the added height.
func AnchorOffset(prevOffset, prevHeight, newHeight int) int {
	added := newHeight - prevHeight
	if added < 0 {
		added = 0
	}
	return prevOffset + added
}
