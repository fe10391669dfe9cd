package store

import (
	"fmt"
	"sort"

	"hush-cli/internal/model"
)

const (
	// FingerprintBucketMs is the createdAt bucket width within which otherwise
	// identical writes are treated as one.
	FingerprintBucketMs = 200
	fingerprintPrefix   = 24
)

// Fingerprint is the near-duplicate key:
// (convId, from, to, floor(createdAt/200ms), nonce, first 24 ciphertext bytes).
func Fingerprint(m model.Message) string {
	data := m.Cipher.Data
	if len(data) > fingerprintPrefix {
		data = data[:fingerprintPrefix]
	}
	return fmt.Sprintf("%s|%s|%s|%d|%x|%x",
		m.ConvID, m.From, m.To, floorDiv(m.CreatedAt, FingerprintBucketMs), m.Cipher.IV, data)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Compact merges a message multiset into its canonical form:
//
//  1. identity merge: the last entry per id wins,
//  2. fingerprint merge: per fingerprint the greatest createdAt wins (later entry on ties),
//  3. stable sort by createdAt ascending.
//
// Compact(Compact(s)) == Compact(s). The input slice is not modified.
func Compact(messages []model.Message) []model.Message {
	if len(messages) == 0 {
		return []model.Message{}
	}

	lastByID := make(map[string]int, len(messages))
	for i, m := range messages {
		lastByID[m.ID] = i
	}
	byID := make([]model.Message, 0, len(lastByID))
	for i, m := range messages {
		if lastByID[m.ID] == i {
			byID = append(byID, m)
		}
	}

	winner := make(map[string]int, len(byID))
	for i, m := range byID {
		fp := Fingerprint(m)
		j, ok := winner[fp]
		if !ok || m.CreatedAt >= byID[j].CreatedAt {
			winner[fp] = i
		}
	}
	out := make([]model.Message, 0, len(winner))
	for i, m := range byID {
		if winner[Fingerprint(m)] == i {
			out = append(out, m)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// CompactionStats describes what Compact would remove from a message set.
type CompactionStats struct {
	Messages              int  `json:"messages"`
	Tombstones            int  `json:"tombstones"`
	DuplicateIDs          int  `json:"duplicateIds"`
	DuplicateFingerprints int  `json:"duplicateFingerprints"`
	Unsorted              bool `json:"unsorted"`
	Survivors             int  `json:"survivors"`
}

func InspectCompaction(messages []model.Message) CompactionStats {
	st := CompactionStats{Messages: len(messages)}
	seen := map[string]bool{}
	for i, m := range messages {
		if m.Deleted {
			st.Tombstones++
		}
		if seen[m.ID] {
			st.DuplicateIDs++
		}
		seen[m.ID] = true
		if i > 0 && messages[i-1].CreatedAt > m.CreatedAt {
			st.Unsorted = true
		}
	}
	st.Survivors = len(Compact(messages))
	st.DuplicateFingerprints = st.Messages - st.DuplicateIDs - st.Survivors
	return st
}
