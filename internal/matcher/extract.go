package matcher

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"contentmapper/internal/attack"
	"contentmapper/internal/catalog"
	"contentmapper/internal/common"
)

// Fields recognised in eval assignments of a saved search.
const (
	FieldRiskConfidence     = "risk_confidence"
	FieldRiskSeverity       = "risk_severity"
	FieldRiskScore          = "risk_score"
	FieldRiskObjectType     = "risk_object_type"
	FieldAttackTactic       = "attack_tactic"
	FieldAttackTechnique    = "attack_technique"
	FieldDataSourceCategory = "data_source_category"
)

var recognisedFields = map[string]bool{
	FieldRiskConfidence:     true,
	FieldRiskSeverity:       true,
	FieldRiskScore:          true,
	FieldRiskObjectType:     true,
	FieldAttackTactic:       true,
	FieldAttackTechnique:    true,
	FieldDataSourceCategory: true,
}

var (
	evalClause     = regexp.MustCompile(`(?i)\beval\s+([^|]+)`)
	evalAssignment = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
	techniqueID    = regexp.MustCompile(`\bT\d{4}(?:\.\d{3})?\b`)
	listSeparator  = regexp.MustCompile(`\s*[,|;]\s*`)
)

// Extraction is what can be read off a saved search without the catalog.
type Extraction struct {
	// Fields holds recognised eval assignments; a later assignment wins.
	Fields map[string]string `json:"fields"`

	// Techniques lists technique ids in order of first appearance, title first.
	Techniques []string `json:"techniques"`
}

// Extract scans a saved search for eval assignments and technique ids.
func Extract(c Candidate) Extraction {
	ex := Extraction{Fields: make(map[string]string)}

	for _, clause := range evalClause.FindAllStringSubmatch(c.Search, -1) {
		for _, m := range evalAssignment.FindAllStringSubmatch(clause[1], -1) {
			field := strings.ToLower(m[1])
			if recognisedFields[field] {
				ex.Fields[field] = m[2]
			}
		}
	}

	seen := make(map[string]bool)
	for _, text := range []string{c.Title, c.Search, ex.Fields[FieldAttackTechnique]} {
		for _, id := range techniqueID.FindAllString(text, -1) {
			if !seen[id] {
				seen[id] = true
				ex.Techniques = append(ex.Techniques, id)
			}
		}
	}
	return ex
}

// DefaultEntry builds a synthetic catalog item for a saved search that maps
// to nothing in the catalog. Tactics come from an attack_tactic assignment,
// or are back-filled from the techniques through the taxonomy when g is
// non-nil.
func DefaultEntry(c Candidate, g *attack.Graph) catalog.Item {
	ex := Extract(c)

	item := catalog.Item{
		ID:             uuid.NewString(),
		Name:           c.Title,
		Description:    c.Description,
		Search:         c.Search,
		MitreTechnique: ex.Techniques,
		Extra:          map[string]string{"source": "saved_search"},
	}

	if v := ex.Fields[FieldRiskSeverity]; v != "" {
		item.Severity = string(common.ParseLevel(v))
	}
	if v := ex.Fields[FieldRiskConfidence]; v != "" {
		confidence := common.ParseLevel(v)
		item.Confidence = string(confidence)
		item.AlertVolume = string(confidence.Invert())
	}
	if v := ex.Fields[FieldDataSourceCategory]; v != "" {
		item.DataSourceCategories = splitList(v)
	}
	for _, f := range []string{FieldRiskScore, FieldRiskObjectType} {
		if v := ex.Fields[f]; v != "" {
			item.Extra[f] = v
		}
	}

	item.MitreTactic = tactics(ex, g)
	return item
}

func tactics(ex Extraction, g *attack.Graph) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	if v := ex.Fields[FieldAttackTactic]; v != "" {
		for _, name := range splitList(v) {
			if g != nil {
				if id, ok := g.TacticNames[name]; ok {
					add(id)
					continue
				}
			}
			add(name)
		}
		return out
	}

	if g == nil {
		return nil
	}
	for _, tech := range ex.Techniques {
		for _, id := range g.TacticsFor(tech) {
			add(id)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range listSeparator.Split(strings.TrimSpace(s), -1) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
