package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hush-cli/internal/model"
)

// WriteEventsJSONL writes one event per line.
func WriteEventsJSONL(w io.Writer, evs []model.Event) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteEventsJSONLFile writes the events to path, replacing it atomically.
func WriteEventsJSONLFile(path string, evs []model.Event) error {
	var sb strings.Builder
	if err := WriteEventsJSONL(&sb, evs); err != nil {
		return err
	}
	return atomicWriteFile(filepath.Dir(path), ".events.*.tmp", path, []byte(sb.String()), 0o644)
}

// ReadEventsJSONL reads events written by WriteEventsJSONL. Blank lines are skipped.
func ReadEventsJSONL(path string) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []model.Event{}
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		var ev model.Event
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			return nil, fmt.Errorf("parse events jsonl line %d: %w", line, err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
