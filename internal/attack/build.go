package attack

import (
	"sort"
	"strings"
)

const (
	// DeprecationMarker in a description excludes the object from the graph.
	DeprecationMarker = "has been deprecated"

	// KillChainName is the kill chain used to link techniques to tactics.
	KillChainName = "mitre-attack"

	// GenericPrefix names the synthetic per-tactic entry.
	GenericPrefix = "Generic "

	typeAttackPattern = "attack-pattern"
)

// Build normalizes objects into a Graph. Malformed references and
// unresolvable links are skipped; Build never fails.
func Build(objects []Object) *Graph {
	g := newGraph()

	for i := range objects {
		obj := &objects[i]
		if excluded(obj) {
			continue
		}
		for _, ref := range obj.ExternalReferences {
			id := ref.ExternalID
			switch {
			case id == "" || ref.SourceName == "":
				continue
			case strings.HasPrefix(id, "TA"):
				g.addTactic(obj, id)
			case obj.Type == typeAttackPattern && strings.Contains(ref.SourceName, "mitre") && strings.HasPrefix(id, "T1"):
				if strings.Contains(id, ".") {
					g.addSubTechnique(obj, id)
				} else {
					g.addTechnique(obj, id)
				}
			}
		}
	}

	g.attachSubTechniques()
	g.linkTactics()
	return g
}

func newGraph() *Graph {
	return &Graph{
		Techniques:              make(map[string]*Technique),
		SubTechniques:           make(map[string]*SubTechnique),
		Tactics:                 make(map[string]*Tactic),
		TechniqueNames:          make(map[string]string),
		SubTechniqueNames:       make(map[string]string),
		TacticNames:             make(map[string]string),
		TechniqueToTactic:       make(map[string][]string),
		TechniqueToSubTechnique: make(map[string][]string),
		ShortNameToTactic:       make(map[string]string),
	}
}

func excluded(obj *Object) bool {
	return obj.Revoked || obj.Deprecated || strings.Contains(obj.Description, DeprecationMarker)
}

func (g *Graph) addTechnique(obj *Object, id string) {
	g.Techniques[id] = &Technique{
		ID:              id,
		Name:            obj.Name,
		Description:     obj.Description,
		SubTechniques:   make(map[string][]*SubTechnique),
		KillChainPhases: obj.KillChainPhases,
	}
	g.TechniqueNames[obj.Name] = id
}

func (g *Graph) addSubTechnique(obj *Object, id string) {
	g.SubTechniques[id] = &SubTechnique{ID: id, Name: obj.Name, Description: obj.Description}
	g.SubTechniqueNames[obj.Name] = id
	base := baseID(id)
	g.TechniqueToSubTechnique[base] = append(g.TechniqueToSubTechnique[base], id)
}

// addTactic registers a tactic everywhere a technique or sub-technique could
// be looked up, so tactic-level content resolves through the same maps.
func (g *Graph) addTactic(obj *Object, id string) {
	g.Tactics[id] = &Tactic{
		ID:        id,
		Name:      obj.Name,
		ShortName: obj.ShortName,
		Techniques: map[string]*Technique{
			id: {
				ID:            id,
				Name:          GenericPrefix + obj.Name,
				SubTechniques: make(map[string][]*SubTechnique),
				Generic:       true,
			},
		},
	}
	g.Techniques[id] = &Technique{
		ID:            id,
		Name:          obj.Name,
		Description:   obj.Description,
		SubTechniques: make(map[string][]*SubTechnique),
	}
	g.SubTechniques[id] = &SubTechnique{ID: id, Name: obj.Name, Description: obj.Description}
	g.TacticNames[obj.Name] = id
	g.TechniqueNames[obj.Name] = id
	g.SubTechniqueNames[obj.Name] = id
	if obj.ShortName != "" {
		g.ShortNameToTactic[obj.ShortName] = id
	}
}

func (g *Graph) attachSubTechniques() {
	for id, sub := range g.SubTechniques {
		if !strings.Contains(id, ".") {
			continue
		}
		parent, ok := g.Techniques[baseID(id)]
		if !ok {
			continue
		}
		parent.SubTechniques[id] = []*SubTechnique{sub}
	}
}

func (g *Graph) linkTactics() {
	// Sorted so the tactic map contents do not depend on map iteration.
	ids := make([]string, 0, len(g.Techniques))
	for id := range g.Techniques {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		tech := g.Techniques[id]
		for _, phase := range tech.KillChainPhases {
			if phase.KillChainName != KillChainName {
				continue
			}
			tacticID, ok := g.ShortNameToTactic[phase.PhaseName]
			if !ok {
				continue
			}
			tactic, ok := g.Tactics[tacticID]
			if !ok {
				continue
			}
			tactic.Techniques[id] = tech
			g.TechniqueToTactic[id] = append(g.TechniqueToTactic[id], tacticID)
		}
	}
}

func baseID(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}
