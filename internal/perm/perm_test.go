package perm

import (
	"testing"

	"hush-cli/internal/model"
)

func TestCanEdit(t *testing.T) {
	mine := &model.Message{ID: "m1", From: "me"}
	theirs := &model.Message{ID: "m2", From: "alice"}
	gone := &model.Message{ID: "m3", From: "me", Deleted: true}

	if !CanEdit("me", mine) {
		t.Fatalf("expected author to edit own message")
	}
	if CanEdit("me", theirs) {
		t.Fatalf("expected peer message to be read-only")
	}
	if CanEdit("me", gone) {
		t.Fatalf("expected tombstone to be read-only")
	}
	if CanEdit("", mine) || CanEdit("me", nil) {
		t.Fatalf("expected empty actor or nil message to be rejected")
	}
}

func TestCanMarkSeen(t *testing.T) {
	if CanMarkSeen("me", &model.Message{From: "me"}) {
		t.Fatalf("own messages are never seen by their author")
	}
	if !CanMarkSeen("me", &model.Message{From: "alice"}) {
		t.Fatalf("peer message should be markable")
	}
	if CanMarkSeen("me", &model.Message{From: "alice", Deleted: true}) {
		t.Fatalf("tombstones are skipped")
	}
}
