package matcher

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentmapper/internal/attack"
	"contentmapper/internal/common"
)

func testGraph() *attack.Graph {
	ref := func(id string) []attack.ExternalReference {
		return []attack.ExternalReference{{SourceName: "mitre-attack", ExternalID: id}}
	}
	phase := func(names ...string) []attack.KillChainPhase {
		var out []attack.KillChainPhase
		for _, n := range names {
			out = append(out, attack.KillChainPhase{KillChainName: attack.KillChainName, PhaseName: n})
		}
		return out
	}
	return attack.Build([]attack.Object{
		{Type: "x-mitre-tactic", Name: "Initial Access", ShortName: "initial-access", ExternalReferences: ref("TA0001")},
		{Type: "x-mitre-tactic", Name: "Execution", ShortName: "execution", ExternalReferences: ref("TA0002")},
		{Type: "attack-pattern", Name: "Command and Scripting Interpreter", ExternalReferences: ref("T1059"), KillChainPhases: phase("execution")},
		{Type: "attack-pattern", Name: "PowerShell", ExternalReferences: ref("T1059.001"), KillChainPhases: phase("execution")},
		{Type: "attack-pattern", Name: "Phishing", ExternalReferences: ref("T1566"), KillChainPhases: phase("initial-access")},
	})
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		in     Candidate
		fields map[string]string
		techs  []string
	}{
		{
			name:   "no eval",
			in:     Candidate{Title: "Plain", Search: "index=main | stats count"},
			fields: map[string]string{},
		},
		{
			name: "recognised assignments",
			in: Candidate{
				Title:  "Encoded PowerShell",
				Search: `index=wineventlog | eval risk_severity="high", risk_score="80", attack_technique="T1059.001" | table _time`,
			},
			fields: map[string]string{
				FieldRiskSeverity:    "high",
				FieldRiskScore:       "80",
				FieldAttackTechnique: "T1059.001",
			},
			techs: []string{"T1059.001"},
		},
		{
			name: "unrecognised fields ignored and later assignment wins",
			in: Candidate{
				Search: `| EVAL foo="bar" risk_confidence="low" | eval risk_confidence="high"`,
			},
			fields: map[string]string{FieldRiskConfidence: "high"},
		},
		{
			name: "techniques deduplicated title first",
			in: Candidate{
				Title:  "T1566 Phishing Attachment",
				Search: `search T1059 OR T1566 | eval attack_technique="T1059.001,T1566"`,
			},
			fields: map[string]string{FieldAttackTechnique: "T1059.001,T1566"},
			techs:  []string{"T1566", "T1059", "T1059.001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Extract(tt.in)
			assert.Equal(t, tt.fields, ex.Fields)
			assert.Equal(t, tt.techs, ex.Techniques)
		})
	}
}

func TestDefaultEntry(t *testing.T) {
	c := Candidate{
		Title:       "Suspicious Encoded PowerShell",
		Description: "Detects encoded commands",
		Search: `index=wineventlog EventCode=4104 | eval risk_confidence="high" risk_severity="medium" ` +
			`risk_object_type="system" data_source_category="Endpoint, Process" attack_technique="T1059.001"`,
	}

	item := DefaultEntry(c, testGraph())

	_, err := uuid.Parse(item.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Title, item.Name)
	assert.Equal(t, c.Description, item.Description)
	assert.Equal(t, c.Search, item.Search)
	assert.Equal(t, string(common.LevelMedium), item.Severity)
	assert.Equal(t, string(common.LevelHigh), item.Confidence)
	assert.Equal(t, string(common.LevelLow), item.AlertVolume)
	assert.Equal(t, []string{"Endpoint", "Process"}, item.DataSourceCategories)
	assert.Equal(t, []string{"T1059.001"}, item.MitreTechnique)
	assert.Equal(t, []string{"TA0002"}, item.MitreTactic, "tactics back-filled through the parent technique")
	assert.Equal(t, "system", item.Extra[FieldRiskObjectType])
	assert.Equal(t, "saved_search", item.Extra["source"])
}

func TestDefaultEntry_ExplicitTactics(t *testing.T) {
	c := Candidate{
		Title:  "Phish T1566",
		Search: `| eval attack_tactic="Initial Access; Lateral Movement"`,
	}

	item := DefaultEntry(c, testGraph())

	assert.Equal(t, []string{"TA0001", "Lateral Movement"}, item.MitreTactic)
}

func TestDefaultEntry_NoGraph(t *testing.T) {
	item := DefaultEntry(Candidate{Title: "T1059 usage"}, nil)

	assert.Equal(t, []string{"T1059"}, item.MitreTechnique)
	assert.Empty(t, item.MitreTactic)
	assert.Empty(t, item.Severity)
	assert.Empty(t, item.AlertVolume)
}

func TestDefaultEntry_UniqueIDs(t *testing.T) {
	a := DefaultEntry(Candidate{Title: "same"}, nil)
	b := DefaultEntry(Candidate{Title: "same"}, nil)
	assert.NotEqual(t, a.ID, b.ID)
}
