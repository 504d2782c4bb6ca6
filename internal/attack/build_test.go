package attack

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mitreRef(id string) []ExternalReference {
	return []ExternalReference{{SourceName: "mitre-attack", ExternalID: id}}
}

func tacticObj(id, name, short string) Object {
	return Object{
		Type:               "x-mitre-tactic",
		Name:               name,
		ShortName:          short,
		ExternalReferences: mitreRef(id),
	}
}

func techniqueObj(id, name string, phases ...string) Object {
	obj := Object{
		Type:               "attack-pattern",
		Name:               name,
		ExternalReferences: mitreRef(id),
	}
	for _, p := range phases {
		obj.KillChainPhases = append(obj.KillChainPhases, KillChainPhase{KillChainName: KillChainName, PhaseName: p})
	}
	return obj
}

func sampleBundle() []Object {
	return []Object{
		tacticObj("TA0001", "Initial Access", "initial-access"),
		tacticObj("TA0002", "Execution", "execution"),
		techniqueObj("T1001", "Test Technique", "initial-access"),
		techniqueObj("T1001.001", "Test Sub-technique", "initial-access"),
		techniqueObj("T1059", "Command and Scripting Interpreter", "execution", "initial-access"),
		techniqueObj("T1059.001", "PowerShell", "execution"),
	}
}

func TestBuild_EndToEnd(t *testing.T) {
	g := Build(sampleBundle())

	tactic, ok := g.Tactics["TA0001"]
	require.True(t, ok)
	assert.Contains(t, tactic.Techniques, "TA0001")
	assert.Contains(t, tactic.Techniques, "T1001")
	assert.Equal(t, []string{"TA0001"}, g.TechniqueToTactic["T1001"])
	assert.Equal(t, []string{"T1001.001"}, g.TechniqueToSubTechnique["T1001"])
	assert.Equal(t, "TA0001", g.ShortNameToTactic["initial-access"])
}

func TestBuild_TacticGenericEntry(t *testing.T) {
	g := Build(sampleBundle())

	for id, tactic := range g.Tactics {
		generic, ok := tactic.Techniques[id]
		require.True(t, ok, "tactic %s has no generic entry", id)
		assert.Equal(t, GenericPrefix+tactic.Name, generic.Name)
		assert.True(t, generic.Generic)
	}
}

func TestBuild_TacticDualRegistration(t *testing.T) {
	g := Build(sampleBundle())

	assert.Equal(t, "Initial Access", g.Techniques["TA0001"].Name)
	assert.Equal(t, "Initial Access", g.SubTechniques["TA0001"].Name)
	assert.Equal(t, "TA0001", g.TacticNames["Initial Access"])
	assert.Equal(t, "TA0001", g.TechniqueNames["Initial Access"])
	assert.Equal(t, "TA0001", g.SubTechniqueNames["Initial Access"])
}

func TestBuild_SubTechniqueParentage(t *testing.T) {
	g := Build(sampleBundle())

	for id := range g.SubTechniques {
		base := id
		if i := strings.Index(id, "."); i >= 0 {
			base = id[:i]
		}
		assert.Contains(t, g.Techniques, base, "parent of %s", id)
	}

	subs := g.Techniques["T1059"].SubTechniques["T1059.001"]
	require.Len(t, subs, 1)
	assert.Equal(t, "PowerShell", subs[0].Name)
	assert.Empty(t, g.Techniques["TA0001"].SubTechniques)
}

func TestBuild_SubTechniqueNotLinkedToTactic(t *testing.T) {
	g := Build(sampleBundle())

	assert.NotContains(t, g.TechniqueToTactic, "T1059.001")
	assert.Equal(t, []string{"TA0002", "TA0001"}, g.TacticsFor("T1059.001"))
}

func TestBuild_MultipleTactics(t *testing.T) {
	g := Build(sampleBundle())

	assert.Equal(t, []string{"TA0002", "TA0001"}, g.TechniqueToTactic["T1059"])
	assert.Contains(t, g.Tactics["TA0001"].Techniques, "T1059")
	assert.Contains(t, g.Tactics["TA0002"].Techniques, "T1059")
}

func TestBuild_DuplicatePhasesNotDeduplicated(t *testing.T) {
	objects := []Object{
		tacticObj("TA0001", "Initial Access", "initial-access"),
		techniqueObj("T1001", "Test Technique", "initial-access", "initial-access"),
	}
	g := Build(objects)

	assert.Equal(t, []string{"TA0001", "TA0001"}, g.TechniqueToTactic["T1001"])
}

func TestBuild_Exclusion(t *testing.T) {
	revoked := techniqueObj("T1002", "Revoked Technique", "initial-access")
	revoked.Revoked = true

	deprecated := techniqueObj("T1003", "Deprecated Technique", "initial-access")
	deprecated.Description = "**This technique has been deprecated. Please use T1001 instead.**"

	flagged := techniqueObj("T1004", "Flagged Technique", "initial-access")
	flagged.Deprecated = true

	revokedSub := techniqueObj("T1001.002", "Revoked Sub", "initial-access")
	revokedSub.Revoked = true

	revokedTactic := tacticObj("TA0099", "Old Tactic", "old-tactic")
	revokedTactic.Revoked = true

	objects := append(sampleBundle(), revoked, deprecated, flagged, revokedSub, revokedTactic)
	g := Build(objects)

	for _, id := range []string{"T1002", "T1003", "T1004", "T1001.002", "TA0099"} {
		assert.NotContains(t, g.Techniques, id)
		assert.NotContains(t, g.SubTechniques, id)
		assert.NotContains(t, g.Tactics, id)
		assert.NotContains(t, g.TechniqueToTactic, id)
		assert.NotContains(t, g.TechniqueToSubTechnique["T1001"], id)
		for _, tactic := range g.Tactics {
			assert.NotContains(t, tactic.Techniques, id)
		}
	}
	for _, name := range []string{"Revoked Technique", "Deprecated Technique", "Flagged Technique", "Revoked Sub"} {
		assert.NotContains(t, g.TechniqueNames, name)
		assert.NotContains(t, g.SubTechniqueNames, name)
	}
	assert.NotContains(t, g.TacticNames, "Old Tactic")
	assert.NotContains(t, g.ShortNameToTactic, "old-tactic")
}

func TestBuild_MalformedReferences(t *testing.T) {
	tests := []struct {
		name string
		refs []ExternalReference
	}{
		{name: "missing external id", refs: []ExternalReference{{SourceName: "mitre-attack"}}},
		{name: "missing source name", refs: []ExternalReference{{ExternalID: "T1100"}}},
		{name: "non mitre source", refs: []ExternalReference{{SourceName: "capec", ExternalID: "T1100"}}},
		{name: "non technique id", refs: []ExternalReference{{SourceName: "mitre-attack", ExternalID: "CAPEC-1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := Object{Type: "attack-pattern", Name: "Broken", ExternalReferences: tt.refs}
			g := Build(append(sampleBundle(), obj))

			assert.NotContains(t, g.TechniqueNames, "Broken")
			assert.Equal(t, Summary{Tactics: 2, Techniques: 2, SubTechniques: 2}, g.Summary())
		})
	}
}

func TestBuild_ValidReferenceAfterMalformedOne(t *testing.T) {
	obj := techniqueObj("T1100", "Recovered", "execution")
	obj.ExternalReferences = append([]ExternalReference{{SourceName: "mitre-attack"}}, obj.ExternalReferences...)

	g := Build(append(sampleBundle(), obj))

	assert.Equal(t, "T1100", g.TechniqueNames["Recovered"])
	assert.Equal(t, []string{"TA0002"}, g.TechniqueToTactic["T1100"])
}

func TestBuild_UnresolvedLinks(t *testing.T) {
	objects := []Object{
		tacticObj("TA0001", "Initial Access", "initial-access"),
		techniqueObj("T1200", "Unknown Phase", "no-such-phase"),
		techniqueObj("T1300.001", "Orphan Sub", "initial-access"),
		{
			Type:               "attack-pattern",
			Name:               "Other Chain",
			ExternalReferences: mitreRef("T1400"),
			KillChainPhases:    []KillChainPhase{{KillChainName: "lockheed", PhaseName: "initial-access"}},
		},
	}
	g := Build(objects)

	assert.Contains(t, g.Techniques, "T1200")
	assert.NotContains(t, g.TechniqueToTactic, "T1200")
	assert.NotContains(t, g.TechniqueToTactic, "T1400")
	assert.Contains(t, g.SubTechniques, "T1300.001")
	assert.Equal(t, []string{"T1300.001"}, g.TechniqueToSubTechnique["T1300"])
	for _, tacticIDs := range g.TechniqueToTactic {
		for _, id := range tacticIDs {
			assert.Contains(t, g.Tactics, id)
		}
	}
}

func TestBuild_NameCollisionLastWriteWins(t *testing.T) {
	objects := []Object{
		techniqueObj("T1001", "Same Name"),
		techniqueObj("T1002", "Same Name"),
	}
	g := Build(objects)

	assert.Equal(t, "T1002", g.TechniqueNames["Same Name"])
	assert.Len(t, g.Techniques, 2)
}

func TestBuild_Idempotent(t *testing.T) {
	objects := sampleBundle()

	first := Build(objects)
	second := Build(objects)

	assert.Equal(t, first, second)
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	objects := sampleBundle()
	before := sampleBundle()

	Build(objects)

	assert.Equal(t, before, objects)
}

func TestBuild_Empty(t *testing.T) {
	g := Build(nil)

	require.NotNil(t, g)
	assert.Empty(t, g.Tactics)
	assert.Equal(t, Summary{}, g.Summary())
}
