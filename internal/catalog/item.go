// Package catalog holds the security content catalog: detections, dashboards
// and references that saved searches are mapped onto.
package catalog

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Item is one unit of security content. The recognised fields are closed;
// any other scalar or list-of-scalar key a source carries lands in Extra.
type Item struct {
	ID                   string            `json:"id" yaml:"id"`
	Name                 string            `json:"name" yaml:"name"`
	Description          string            `json:"description,omitempty" yaml:"description,omitempty"`
	SearchKeywords       string            `json:"searchKeywords,omitempty" yaml:"searchKeywords,omitempty"`
	Relevance            string            `json:"relevance,omitempty" yaml:"relevance,omitempty"`
	Story                string            `json:"story,omitempty" yaml:"story,omitempty"`
	Search               string            `json:"search,omitempty" yaml:"search,omitempty"`
	DataSourceCategories []string          `json:"data_source_categories,omitempty" yaml:"data_source_categories,omitempty"`
	MitreTechnique       []string          `json:"mitre_technique,omitempty" yaml:"mitre_technique,omitempty"`
	MitreTactic          []string          `json:"mitre_tactic,omitempty" yaml:"mitre_tactic,omitempty"`
	BookmarkStatus       string            `json:"bookmark_status,omitempty" yaml:"bookmark_status,omitempty"`
	Severity             string            `json:"severity,omitempty" yaml:"severity,omitempty"`
	Confidence           string            `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	AlertVolume          string            `json:"alert_volume,omitempty" yaml:"alert_volume,omitempty"`
	Extra                map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

var knownKeys = map[string]bool{
	"id": true, "name": true, "description": true, "searchKeywords": true,
	"relevance": true, "story": true, "search": true,
	"data_source_categories": true, "mitre_technique": true, "mitre_tactic": true,
	"bookmark_status": true, "severity": true, "confidence": true,
	"alert_volume": true, "extra": true,
}

// UnmarshalYAML decodes the recognised fields, then copies unrecognised keys
// into Extra. Lists of scalars are joined with spaces the way Field joins
// list fields; nested maps and nulls are skipped. An entry under an explicit
// extra key wins over a top-level key of the same name.
func (it *Item) UnmarshalYAML(node *yaml.Node) error {
	type plain Item
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*it = Item(p)

	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if knownKeys[key] {
			continue
		}
		v, ok := scalarText(node.Content[i+1])
		if !ok {
			continue
		}
		if it.Extra == nil {
			it.Extra = make(map[string]string)
		}
		if _, set := it.Extra[key]; !set {
			it.Extra[key] = v
		}
	}
	return nil
}

func scalarText(n *yaml.Node) (string, bool) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return "", false
		}
		return n.Value, true
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode || c.Tag == "!!null" {
				return "", false
			}
			parts = append(parts, c.Value)
		}
		return strings.Join(parts, " "), true
	default:
		return "", false
	}
}

// Field returns the text of a named field for indexing. Names outside the
// recognised set are looked up in Extra.
func (it *Item) Field(name string) string {
	switch name {
	case "id":
		return it.ID
	case "name":
		return it.Name
	case "description":
		return it.Description
	case "searchKeywords":
		return it.SearchKeywords
	case "relevance":
		return it.Relevance
	case "story":
		return it.Story
	case "search":
		return it.Search
	case "data_source_categories":
		return strings.Join(it.DataSourceCategories, " ")
	case "mitre_technique":
		return strings.Join(it.MitreTechnique, " ")
	case "mitre_tactic":
		return strings.Join(it.MitreTactic, " ")
	case "bookmark_status":
		return it.BookmarkStatus
	case "severity":
		return it.Severity
	case "confidence":
		return it.Confidence
	case "alert_volume":
		return it.AlertVolume
	default:
		return it.Extra[name]
	}
}

// FieldWeights maps an indexed field name to its boost.
type FieldWeights map[string]float64

// DefaultFieldWeights favours the title, then curated keywords.
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{
		"name":           10,
		"searchKeywords": 5,
		"description":    3,
		"story":          2,
		"relevance":      1,
	}
}

// Max returns the largest boost, or 0 for an empty map.
func (w FieldWeights) Max() float64 {
	var max float64
	for _, v := range w {
		if v > max {
			max = v
		}
	}
	return max
}
