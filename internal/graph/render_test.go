package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/apptree/internal/extension"
)

func TestRenderRoot(t *testing.T) {
	g, err := Resolve("b", sampleDecls())
	require.NoError(t, err)

	want := `<b>
  x [
    <bx1 />
    <bx2 />
  ]
  y [
    <by1 />
  ]
</b>`
	assert.Equal(t, want, Render(g.Root()))
	assert.Equal(t, want, g.Root().String())
}

func TestRenderLeaf(t *testing.T) {
	g, err := Resolve("b", sampleDecls())
	require.NoError(t, err)
	a, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, "<a />", Render(a))
	assert.Equal(t, "", Render(nil))
}

func TestRenderNested(t *testing.T) {
	g, err := Resolve("app", []extension.Declaration{
		{ID: "app"},
		attached("nav", "app", "nav"),
		attached("item1", "nav", "items"),
		attached("item2", "nav", "items"),
		attached("page", "app", "routes"),
	})
	require.NoError(t, err)

	want := `<app>
  nav [
    <nav>
      items [
        <item1 />
        <item2 />
      ]
    </nav>
  ]
  routes [
    <page />
  ]
</app>`
	assert.Equal(t, want, g.Root().String())
}

func TestRenderOrphanCycle(t *testing.T) {
	g, err := Resolve("app", []extension.Declaration{
		{ID: "app"},
		attached("a", "b", "x"),
		attached("b", "a", "y"),
		attached("s", "s", "loop"),
	})
	require.NoError(t, err)

	a, _ := g.Node("a")
	assert.Equal(t, `<a>
  y [
    <b>
      x [
        <a (cycle) />
      ]
    </b>
  ]
</a>`, a.String())

	s, _ := g.Node("s")
	assert.Equal(t, `<s>
  loop [
    <s (cycle) />
  ]
</s>`, s.String())
}

func TestMarshalJSON(t *testing.T) {
	g, err := Resolve("b", sampleDecls())
	require.NoError(t, err)

	data, err := json.Marshal(g.Root())
	require.NoError(t, err)
	assert.Equal(t,
		`{"id":"b","attachments":{"x":[{"id":"bx1"},{"id":"bx2"}],"y":[{"id":"by1"}]}}`,
		string(data))

	orphanJSON, err := json.Marshal(g.Orphans())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"},{"id":"c"},{"id":"dx1"}]`, string(orphanJSON))
}

func TestMarshalJSONCycle(t *testing.T) {
	g, err := Resolve("app", []extension.Declaration{
		{ID: "app"},
		attached("s", "s", "loop"),
	})
	require.NoError(t, err)
	s, _ := g.Node("s")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"s","attachments":{"loop":[{"id":"s","cycle":true}]}}`, string(data))
}
