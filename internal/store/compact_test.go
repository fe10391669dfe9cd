package store

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"hush-cli/internal/model"
)

func msg(id, conv string, createdAt int64, iv, data string) model.Message {
	return model.Message{
		ID:        id,
		ConvID:    conv,
		From:      "me",
		To:        "alice",
		Cipher:    model.CipherPayload{IV: []byte(iv), Data: []byte(data)},
		CreatedAt: createdAt,
		Status:    model.StatusSent,
	}
}

func ids(ms []model.Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func TestCompact_IdentityMergeLastWriteWins(t *testing.T) {
	a1 := msg("msg-a", "conv-alice", 1000, "iv-a", "data-a")
	a2 := a1
	a2.Status = model.StatusSeen
	b := msg("msg-b", "conv-alice", 2000, "iv-b", "data-b")

	got := Compact([]model.Message{a1, b, a2})
	if want := []string{"msg-a", "msg-b"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("ids = %v, want %v", ids(got), want)
	}
	if got[0].Status != model.StatusSeen {
		t.Fatalf("expected the later write of msg-a to win; got status %q", got[0].Status)
	}
}

func TestCompact_FingerprintCollapseKeepsLatest(t *testing.T) {
	// Same conv/from/to, same nonce + ciphertext prefix, same 200ms bucket, different ids.
	early := msg("msg-1", "conv-alice", 10_010, "nonce-123456", "ciphertext-bytes-identical-prefix-AAAA")
	late := msg("msg-2", "conv-alice", 10_150, "nonce-123456", "ciphertext-bytes-identical-prefix-BBBB")

	got := Compact([]model.Message{late, early})
	if len(got) != 1 || got[0].ID != "msg-2" {
		t.Fatalf("expected only msg-2 to survive; got %v", ids(got))
	}
}

func TestCompact_FingerprintTieLaterEncounteredWins(t *testing.T) {
	x := msg("msg-x", "conv-alice", 5000, "nonce", "data")
	y := msg("msg-y", "conv-alice", 5000, "nonce", "data")
	got := Compact([]model.Message{x, y})
	if len(got) != 1 || got[0].ID != "msg-y" {
		t.Fatalf("got %v, want [msg-y]", ids(got))
	}
}

func TestCompact_DistinctWritesSurvive(t *testing.T) {
	base := msg("msg-1", "conv-alice", 10_000, "nonce", "data")

	otherBucket := msg("msg-2", "conv-alice", 10_200, "nonce", "data")
	otherConv := msg("msg-3", "conv-bob", 10_000, "nonce", "data")
	otherNonce := msg("msg-4", "conv-alice", 10_000, "nonce-2", "data")
	otherPrefix := msg("msg-5", "conv-alice", 10_000, "nonce", "DATA")
	// Differs only past the 24-byte prefix: collapses with its twin.
	longA := msg("msg-6", "conv-alice", 20_000, "n", "0123456789abcdef01234567-tail-a")
	longB := msg("msg-7", "conv-alice", 20_001, "n", "0123456789abcdef01234567-tail-b")

	got := Compact([]model.Message{base, otherBucket, otherConv, otherNonce, otherPrefix, longA, longB})
	want := []string{"msg-1", "msg-3", "msg-4", "msg-5", "msg-2", "msg-7"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("ids = %v, want %v", ids(got), want)
	}
}

func TestCompact_SortsStableByCreatedAt(t *testing.T) {
	a := msg("msg-a", "conv-alice", 3000, "1", "a")
	b := msg("msg-b", "conv-alice", 1000, "2", "b")
	c := msg("msg-c", "conv-bob", 3000, "3", "c")
	d := msg("msg-d", "conv-alice", 2000, "4", "d")

	got := Compact([]model.Message{a, b, c, d})
	if want := []string{"msg-b", "msg-d", "msg-a", "msg-c"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("ids = %v, want %v", ids(got), want)
	}
}

func TestCompact_EmptyAndNil(t *testing.T) {
	if got := Compact(nil); got == nil || len(got) != 0 {
		t.Fatalf("Compact(nil) = %#v, want empty non-nil", got)
	}
}

func TestCompact_DoesNotModifyInput(t *testing.T) {
	in := []model.Message{
		msg("msg-b", "conv-alice", 2000, "2", "b"),
		msg("msg-a", "conv-alice", 1000, "1", "a"),
	}
	_ = Compact(in)
	if in[0].ID != "msg-b" {
		t.Fatalf("input reordered: %v", ids(in))
	}
}

// randomMessages builds a multiset rich in id collisions and near-duplicates.
func randomMessages(r *rand.Rand, n int) []model.Message {
	convs := []string{"conv-alice", "conv-bob"}
	out := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		m := msg(
			fmt.Sprintf("msg-%d", r.Intn(n/2+1)),
			convs[r.Intn(len(convs))],
			int64(1000+r.Intn(2000)),
			fmt.Sprintf("iv-%d", r.Intn(4)),
			fmt.Sprintf("data-%d", r.Intn(4)),
		)
		if r.Intn(2) == 0 {
			m.From, m.To = m.To, m.From
		}
		out = append(out, m)
	}
	return out
}

func TestCompact_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		in := randomMessages(r, 1+r.Intn(40))
		once := Compact(in)
		twice := Compact(once)

		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("round %d: not idempotent\nonce:  %v\ntwice: %v", round, ids(once), ids(twice))
		}

		seenIDs := map[string]bool{}
		seenFP := map[string]bool{}
		for i, m := range once {
			if seenIDs[m.ID] {
				t.Fatalf("round %d: duplicate id %s", round, m.ID)
			}
			seenIDs[m.ID] = true
			fp := Fingerprint(m)
			if seenFP[fp] {
				t.Fatalf("round %d: duplicate fingerprint %s", round, fp)
			}
			seenFP[fp] = true
			if i > 0 && once[i-1].CreatedAt > m.CreatedAt {
				t.Fatalf("round %d: not sorted at %d", round, i)
			}
		}
	}
}

func TestInspectCompaction(t *testing.T) {
	a := msg("msg-a", "conv-alice", 3000, "1", "a")
	dupID := a
	nearDup := msg("msg-z", "conv-alice", 3050, "1", "a")
	tomb := msg("msg-t", "conv-alice", 1000, "9", "t")
	tomb.Deleted = true

	st := InspectCompaction([]model.Message{a, dupID, nearDup, tomb})
	want := CompactionStats{
		Messages:              4,
		Tombstones:            1,
		DuplicateIDs:          1,
		DuplicateFingerprints: 1,
		Unsorted:              true,
		Survivors:             2,
	}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}
