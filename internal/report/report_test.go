package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/apptree/internal/extension"
	"github.com/kingrea/apptree/internal/graph"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	at := func(id, target, input string) extension.Declaration {
		return extension.Declaration{ID: id, AttachTo: extension.AttachPoint{ID: target, Input: input}}
	}
	g, err := graph.Resolve("b", []extension.Declaration{
		{ID: "a"},
		{ID: "b"},
		at("by1", "b", "y"),
		at("bx1", "b", "x"),
		at("dx1", "d", "x"),
	})
	require.NoError(t, err)
	return g
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleGraph(t), FormatText))
	assert.Equal(t, "<b>\n"+
		"  y [\n"+
		"    <by1 />\n"+
		"  ]\n"+
		"  x [\n"+
		"    <bx1 />\n"+
		"  ]\n"+
		"</b>\n"+
		"\n"+
		"orphans:\n"+
		"<a />\n"+
		"<dx1 />\n", buf.String())
}

func TestWriteTextWithoutOrphans(t *testing.T) {
	g, err := graph.Resolve("core", []extension.Declaration{{ID: "core"}})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, g, FormatText))
	assert.Equal(t, "<core />\n", buf.String())
}

func TestWriteJSONKeepsSlotOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleGraph(t), FormatJSON))

	var compact bytes.Buffer
	require.NoError(t, json.Compact(&compact, buf.Bytes()))
	assert.Equal(t,
		`{"root":{"id":"b","attachments":{"y":[{"id":"by1"}],"x":[{"id":"bx1"}]}},`+
			`"orphans":[{"id":"a"},{"id":"dx1"}],`+
			`"nodes":["a","b","by1","bx1","dx1"]}`,
		compact.String())
}

func TestWriteYAMLKeepsSlotOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleGraph(t), FormatYAML))
	assert.Equal(t, `root:
  id: b
  attachments:
    y:
      - id: by1
    x:
      - id: bx1
orphans:
  - id: a
  - id: dx1
nodes:
  - a
  - b
  - by1
  - bx1
  - dx1
`, buf.String())

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded["nodes"], 5)
}

func TestWriteOrphans(t *testing.T) {
	g := sampleGraph(t)

	var text bytes.Buffer
	require.NoError(t, WriteOrphans(&text, g, FormatText))
	assert.Equal(t, "<a />\n<dx1 />\n", text.String())

	var js bytes.Buffer
	require.NoError(t, WriteOrphans(&js, g, FormatJSON))
	assert.JSONEq(t, `[{"id":"a"},{"id":"dx1"}]`, js.String())

	single, err := graph.Resolve("core", []extension.Declaration{{ID: "core"}})
	require.NoError(t, err)
	js.Reset()
	require.NoError(t, WriteOrphans(&js, single, FormatJSON))
	assert.JSONEq(t, `[]`, js.String())
}

func TestWriteRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, sampleGraph(t), Format("xml")))
	assert.Error(t, Write(&buf, nil, FormatText))
}

func cycleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Resolve("app", []extension.Declaration{
		{ID: "app"},
		{ID: "s", AttachTo: extension.AttachPoint{ID: "s", Input: "loop"}},
	})
	require.NoError(t, err)
	return g
}

func TestWriteMarksOrphanCycles(t *testing.T) {
	g := cycleGraph(t)

	var js bytes.Buffer
	require.NoError(t, Write(&js, g, FormatJSON))
	var compact bytes.Buffer
	require.NoError(t, json.Compact(&compact, js.Bytes()))
	assert.Equal(t,
		`{"root":{"id":"app"},`+
			`"orphans":[{"id":"s","attachments":{"loop":[{"id":"s","cycle":true}]}}],`+
			`"nodes":["app","s"]}`,
		compact.String())

	var ym bytes.Buffer
	require.NoError(t, Write(&ym, g, FormatYAML))
	assert.Equal(t, `root:
  id: app
orphans:
  - id: s
    attachments:
      loop:
        - id: s
          cycle: true
nodes:
  - app
  - s
`, ym.String())

	var decoded struct {
		Orphans []struct {
			Attachments map[string][]struct {
				ID    string `yaml:"id"`
				Cycle bool   `yaml:"cycle"`
			} `yaml:"attachments"`
		} `yaml:"orphans"`
	}
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &decoded))
	require.Len(t, decoded.Orphans, 1)
	loop := decoded.Orphans[0].Attachments["loop"]
	require.Len(t, loop, 1)
	assert.Equal(t, "s", loop[0].ID)
	assert.True(t, loop[0].Cycle)
}

func TestWriteOrphansMarksCycles(t *testing.T) {
	g := cycleGraph(t)

	var js bytes.Buffer
	require.NoError(t, WriteOrphans(&js, g, FormatJSON))
	assert.JSONEq(t, `[{"id":"s","attachments":{"loop":[{"id":"s","cycle":true}]}}]`, js.String())

	var ym bytes.Buffer
	require.NoError(t, WriteOrphans(&ym, g, FormatYAML))
	assert.Equal(t, `- id: s
  attachments:
    loop:
      - id: s
        cycle: true
`, ym.String())

	var text bytes.Buffer
	require.NoError(t, WriteOrphans(&text, g, FormatText))
	assert.Equal(t, "<s>\n  loop [\n    <s (cycle) />\n  ]\n</s>\n", text.String())
}
