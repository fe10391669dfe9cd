package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Texter is implemented by payloads with a hand-made terminal rendering.
type Texter interface {
	Text() string
}

// WriteText renders the "data" member of a response envelope for people. Payloads
// implementing Texter render themselves; anything else is dumped as YAML using its
// JSON field names. Envelope metadata is not shown.
func WriteText(w io.Writer, v any) error {
	if env, ok := v.(map[string]any); ok {
		if data, ok := env["data"]; ok {
			v = data
		}
	}
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case Texter:
		s = t.Text()
	case string:
		s = t
	default:
		plain, err := viaJSON(v)
		if err != nil {
			return err
		}
		b, err := yaml.Marshal(plain)
		if err != nil {
			return err
		}
		s = string(b)
	}
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, s)
	return err
}

// viaJSON converts structs to plain maps and slices so their json tags name the fields.
func viaJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return nil, err
	}
	return x, nil
}
