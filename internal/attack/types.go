// Package attack normalizes a MITRE ATT&CK STIX bundle into a cross-referenced
// taxonomy of tactics, techniques and sub-techniques.
package attack

// Object is a raw STIX record as it appears in an ATT&CK bundle.
type Object struct {
	ID                 string              `json:"id"`
	Type               string              `json:"type"`
	Name               string              `json:"name"`
	Description        string              `json:"description,omitempty"`
	Revoked            bool                `json:"revoked,omitempty"`
	Deprecated         bool                `json:"x_mitre_deprecated,omitempty"`
	ShortName          string              `json:"x_mitre_shortname,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
	KillChainPhases    []KillChainPhase    `json:"kill_chain_phases,omitempty"`
}

// ExternalReference links a STIX object to an external catalog id.
type ExternalReference struct {
	SourceName string `json:"source_name"`
	ExternalID string `json:"external_id,omitempty"`
	URL        string `json:"url,omitempty"`
}

// KillChainPhase tags a technique with a kill chain stage.
type KillChainPhase struct {
	KillChainName string `json:"kill_chain_name"`
	PhaseName     string `json:"phase_name"`
}

// Tactic is a top-level adversary goal.
type Tactic struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`

	// Techniques always contains the tactic's own generic entry keyed by ID.
	Techniques map[string]*Technique `json:"techniques"`
}

// Technique is a method achieving one or more tactics.
type Technique struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// SubTechniques values are one-element lists; consumers expect multiplicity.
	SubTechniques   map[string][]*SubTechnique `json:"sub_techniques"`
	KillChainPhases []KillChainPhase           `json:"-"`

	// Generic marks the synthetic "Generic <tactic>" entry.
	Generic bool `json:"generic,omitempty"`
}

// SubTechnique refines a technique; its id is the parent id plus ".NNN".
type SubTechnique struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Graph is an immutable snapshot built from one bundle. Callers must treat
// every map as read-only; rebuild from a new bundle instead of mutating.
type Graph struct {
	Techniques    map[string]*Technique    `json:"techniques"`
	SubTechniques map[string]*SubTechnique `json:"sub_techniques"`
	Tactics       map[string]*Tactic       `json:"tactics"`

	TechniqueNames    map[string]string `json:"technique_names"`
	SubTechniqueNames map[string]string `json:"sub_technique_names"`
	TacticNames       map[string]string `json:"tactic_names"`

	TechniqueToTactic       map[string][]string `json:"technique_to_tactic"`
	TechniqueToSubTechnique map[string][]string `json:"technique_to_sub_technique"`
	ShortNameToTactic       map[string]string   `json:"short_name_to_tactic"`
}

// Summary holds object counts for logging and metrics.
type Summary struct {
	Tactics       int `json:"tactics"`
	Techniques    int `json:"techniques"`
	SubTechniques int `json:"sub_techniques"`
}
