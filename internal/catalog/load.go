package catalog

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

type document struct {
	Items []Item `yaml:"items"`
}

// Load reads a catalog file. YAML and JSON are both accepted.
func Load(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	items, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// Decode parses either a top-level list of items or a document with an
// "items" key. Items without an id or name are dropped.
func Decode(r io.Reader) ([]Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var items []Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing catalog: %w", err)
		}
		items = doc.Items
	}

	valid := items[:0]
	for _, it := range items {
		if it.ID == "" || it.Name == "" {
			slog.Debug("skipping catalog item", "id", it.ID, "name", it.Name)
			continue
		}
		valid = append(valid, it)
	}
	return valid, nil
}
