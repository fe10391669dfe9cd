package thread

import (
	"fmt"
	"testing"
	"time"

	"hush-cli/internal/model"
)

func mk(id, conv, from string, createdAt int64) model.Message {
	return model.Message{ID: id, ConvID: conv, From: from, CreatedAt: createdAt, Status: model.StatusDelivered}
}

func series(conv string, n int) []model.Message {
	out := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, mk(fmt.Sprintf("m%02d", i), conv, "alice", int64(1000+i)))
	}
	return out
}

func TestVisibleSlice_PaginationBound(t *testing.T) {
	msgs := series("conv-a", 45)
	// Tombstones and other conversations never count.
	msgs[3].Deleted = true
	msgs[40].Deleted = true
	msgs = append(msgs, series("conv-b", 7)...)

	total := 43
	for page := 0; page < 4; page++ {
		s := VisibleSlice(msgs, "conv-a", page, 20)
		want := 20 * (page + 1)
		if want > total {
			want = total
		}
		if len(s.Messages) != want {
			t.Fatalf("page %d: len = %d, want %d", page, len(s.Messages), want)
		}
		if s.Total != total {
			t.Fatalf("page %d: total = %d, want %d", page, s.Total, total)
		}
		if s.HasMore != (want < total) {
			t.Fatalf("page %d: hasMore = %v", page, s.HasMore)
		}
		for _, m := range s.Messages {
			if m.Deleted || m.ConvID != "conv-a" {
				t.Fatalf("page %d: unexpected message %+v", page, m)
			}
		}
	}
}

func TestVisibleSlice_WindowIsNewestAscending(t *testing.T) {
	msgs := series("conv-a", 25)
	// Out of order input still yields an ascending window.
	msgs[0], msgs[24] = msgs[24], msgs[0]

	s := VisibleSlice(msgs, "conv-a", 0, 20)
	if s.Messages[0].ID != "m05" || s.Messages[19].ID != "m24" {
		t.Fatalf("window = %s..%s, want m05..m24", s.Messages[0].ID, s.Messages[19].ID)
	}
}

func TestVisibleSlice_DefaultsAndClamping(t *testing.T) {
	msgs := series("conv-a", 30)
	s := VisibleSlice(msgs, "conv-a", -3, 0)
	if s.Page != 0 || len(s.Messages) != DefaultPageSize {
		t.Fatalf("got page=%d len=%d", s.Page, len(s.Messages))
	}
	empty := VisibleSlice(nil, "conv-a", 0, 20)
	if empty.Total != 0 || len(empty.Messages) != 0 || empty.HasMore {
		t.Fatalf("empty slice = %+v", empty)
	}
}

func TestUnread(t *testing.T) {
	slice := []model.Message{
		mk("a", "conv-a", "alice", 100),
		mk("b", "conv-a", "me", 200),
		mk("c", "conv-a", "alice", 300),
		mk("d", "conv-a", "alice", 400),
	}
	slice[3].Deleted = true

	got := Unread(slice, 150, "me")
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("unread = %+v", got)
	}
	sum := Summarize(got)
	if sum.Count != 1 || sum.FirstID != "c" {
		t.Fatalf("summary = %+v", sum)
	}
	if s := Summarize(Unread(slice, 1000, "me")); s.Count != 0 || s.FirstID != "" {
		t.Fatalf("expected nothing unread; got %+v", s)
	}
}

func TestGroupByDay(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, loc)
	at := func(d time.Time) int64 { return d.UnixMilli() }

	msgs := []model.Message{
		mk("old", "c", "a", at(time.Date(2024, 5, 6, 23, 59, 0, 0, loc))),
		mk("y1", "c", "a", at(time.Date(2024, 5, 9, 0, 0, 0, 0, loc))),
		mk("y2", "c", "a", at(time.Date(2024, 5, 9, 23, 59, 59, 0, loc))),
		mk("t1", "c", "a", at(time.Date(2024, 5, 10, 0, 0, 1, 0, loc))),
	}
	groups := GroupByDay(msgs, now, loc)

	want := []struct {
		label string
		n     int
	}{{"Mon, May 6", 1}, {"Yesterday", 2}, {"Today", 1}}
	if len(groups) != len(want) {
		t.Fatalf("groups = %+v", groups)
	}
	for i, w := range want {
		if groups[i].Label != w.label || len(groups[i].Messages) != w.n {
			t.Fatalf("group %d = %q (%d), want %q (%d)", i, groups[i].Label, len(groups[i].Messages), w.label, w.n)
		}
	}
}

func TestNearBottomAndAnchor(t *testing.T) {
	if !NearBottom(0, 10, 20, 2) {
		t.Fatalf("short content is always at the bottom")
	}
	if !NearBottom(79, 100, 20, 2) {
		t.Fatalf("within threshold should count as near bottom")
	}
	if NearBottom(50, 100, 20, 2) {
		t.Fatalf("mid-thread is not near bottom")
	}
	if got := AnchorOffset(0, 100, 160); got != 60 {
		t.Fatalf("AnchorOffset = %d, want 60", got)
	}
	if got := AnchorOffset(5, 100, 90); got != 5 {
		t.Fatalf("AnchorOffset shrink = %d, want 5", got)
	}
}
