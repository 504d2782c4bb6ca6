package attack

import (
	"sort"
	"strings"
)

// TacticsFor returns the tactic ids a technique or sub-technique maps to.
// Sub-techniques inherit the tactics of their parent.
func (g *Graph) TacticsFor(id string) []string {
	if tactics, ok := g.TechniqueToTactic[id]; ok {
		return tactics
	}
	if _, ok := g.Tactics[id]; ok {
		return []string{id}
	}
	return g.TechniqueToTactic[baseID(id)]
}

// Name resolves any tactic, technique or sub-technique id to its name.
func (g *Graph) Name(id string) (string, bool) {
	if t, ok := g.Tactics[id]; ok {
		return t.Name, true
	}
	if t, ok := g.Techniques[id]; ok {
		return t.Name, true
	}
	if s, ok := g.SubTechniques[id]; ok {
		return s.Name, true
	}
	return "", false
}

// TacticIDs returns all tactic ids in ascending order.
func (g *Graph) TacticIDs() []string {
	ids := make([]string, 0, len(g.Tactics))
	for id := range g.Tactics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summary counts objects, excluding the dual-registered tactic entries.
func (g *Graph) Summary() Summary {
	s := Summary{Tactics: len(g.Tactics)}
	for id := range g.Techniques {
		if !isTacticID(id) {
			s.Techniques++
		}
	}
	for id := range g.SubTechniques {
		if !isTacticID(id) {
			s.SubTechniques++
		}
	}
	return s
}

func isTacticID(id string) bool {
	return strings.HasPrefix(id, "TA")
}
