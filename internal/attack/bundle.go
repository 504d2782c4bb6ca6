package attack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

type bundle struct {
	Type    string            `json:"type"`
	ID      string            `json:"id"`
	Objects []json.RawMessage `json:"objects"`
}

// DecodeBundle reads a STIX bundle, or a bare JSON array of objects, and
// returns its objects in document order. Objects that fail to decode are
// skipped.
func DecodeBundle(r io.Reader) ([]Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}

	var raw []json.RawMessage
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("parsing object list: %w", err)
		}
	} else {
		var b bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("parsing STIX bundle: %w", err)
		}
		raw = b.Objects
	}

	objects := make([]Object, 0, len(raw))
	for _, msg := range raw {
		var obj Object
		if err := json.Unmarshal(msg, &obj); err != nil {
			continue
		}
		objects = append(objects, obj)
	}
	return objects, nil
}
