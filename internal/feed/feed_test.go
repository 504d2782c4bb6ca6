package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentmapper/internal/attack"
)

const bundleJSON = `{
  "type": "bundle",
  "objects": [
    {"type": "x-mitre-tactic", "name": "Execution", "x_mitre_shortname": "execution",
     "external_references": [{"source_name": "mitre-attack", "external_id": "TA0002"}]},
    {"type": "attack-pattern", "name": "Command and Scripting Interpreter",
     "external_references": [{"source_name": "mitre-attack", "external_id": "T1059"}],
     "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "execution"}]}
  ]
}`

const overrideJSON = `[
  {"type": "attack-pattern", "name": "Scripting",
   "external_references": [{"source_name": "mitre-attack", "external_id": "T1059"}],
   "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "execution"}]}
]`

type staticFetcher struct {
	name    string
	objects []attack.Object
	err     error
}

func (s staticFetcher) Name() string { return s.name }

func (s staticFetcher) Fetch(context.Context) ([]attack.Object, error) {
	return s.objects, s.err
}

func writeBundle(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFileFetcher(t *testing.T) {
	objects, err := NewFileFetcher(writeBundle(t, bundleJSON)).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, objects, 2)

	_, err = NewFileFetcher(filepath.Join(t.TempDir(), "missing.json")).Fetch(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/enterprise-attack.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(bundleJSON))
	}))
	defer srv.Close()

	objects, err := NewHTTPFetcher(srv.URL + "/enterprise-attack.json").Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, objects, 2)

	_, err = NewHTTPFetcher(srv.URL + "/missing").Fetch(context.Background())
	assert.ErrorContains(t, err, "unexpected status")
}

func TestController_Run(t *testing.T) {
	c := NewController(nil)
	c.Register(NewFileFetcher(writeBundle(t, bundleJSON)))
	c.Register(NewFileFetcher(writeBundle(t, overrideJSON)))

	g, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"TA0002"}, g.TacticsFor("T1059"))
	name, ok := g.Name("T1059")
	assert.True(t, ok)
	assert.Equal(t, "Scripting", name, "later source wins")
}

func TestController_PartialFailure(t *testing.T) {
	c := NewController(nil)
	c.Register(staticFetcher{name: "broken", err: errors.New("timeout")})
	c.Register(NewFileFetcher(writeBundle(t, bundleJSON)))

	g, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, attack.Summary{Tactics: 1, Techniques: 1}, g.Summary())
}

func TestController_AllFail(t *testing.T) {
	c := NewController(nil)
	c.Register(staticFetcher{name: "a", err: errors.New("timeout")})
	c.Register(staticFetcher{name: "b", err: errors.New("refused")})

	_, err := c.Run(context.Background())
	assert.ErrorContains(t, err, "all fetchers failed")
	assert.ErrorContains(t, err, "refused")
}

func TestController_NoFetchers(t *testing.T) {
	_, err := NewController(nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoFetchers)
}

func TestFetcherFor(t *testing.T) {
	assert.IsType(t, &HTTPFetcher{}, FetcherFor("https://example.com/enterprise-attack.json"))
	assert.IsType(t, &HTTPFetcher{}, FetcherFor("http://localhost/bundle.json"))
	assert.IsType(t, &FileFetcher{}, FetcherFor("testdata/enterprise-attack.json"))
}
