package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/apptree/internal/extension"
)

var nowhere = extension.AttachPoint{ID: "nonexistent", Input: "nonexistent"}

func decl(id string) extension.Declaration {
	return extension.Declaration{ID: id, AttachTo: nowhere}
}

func attached(id, target, input string) extension.Declaration {
	return extension.Declaration{ID: id, AttachTo: extension.AttachPoint{ID: target, Input: input}}
}

func orphanStrings(g *Graph) []string {
	var out []string
	for _, n := range g.Orphans() {
		out = append(out, n.String())
	}
	return out
}

func idsOf(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID())
	}
	return out
}

func sampleDecls() []extension.Declaration {
	return []extension.Declaration{
		decl("a"),
		decl("b"),
		decl("c"),
		attached("bx1", "b", "x"),
		attached("bx2", "b", "x"),
		attached("by1", "b", "y"),
		attached("dx1", "d", "x"),
	}
}

func TestResolveEmptyInputHasNoRoot(t *testing.T) {
	for _, root := range []string{"core", "app", "b"} {
		_, err := Resolve(root, nil)
		require.Error(t, err)
		assert.EqualError(t, err, fmt.Sprintf("no root node with id '%s' found in app graph", root))
		assert.ErrorIs(t, err, ErrRootNotFound)

		var notFound *RootNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, root, notFound.RootID)
	}
}

func TestResolveSingleNode(t *testing.T) {
	g, err := Resolve("core", []extension.Declaration{decl("core")})
	require.NoError(t, err)

	assert.Equal(t, "core", g.Root().ID())
	assert.Equal(t, 0, g.Root().Attachments().Len())
	assert.Equal(t, []string{"core"}, g.IDs())
	assert.Empty(t, g.Orphans())
	assert.Equal(t, nowhere, g.Root().Declaration().AttachTo)
}

func TestResolveGroupsAttachmentsByInput(t *testing.T) {
	g, err := Resolve("b", sampleDecls())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "bx1", "bx2", "by1", "dx1"}, g.IDs())

	root := g.Root()
	assert.Equal(t, []string{"x", "y"}, root.Attachments().Inputs())
	assert.Equal(t, []string{"bx1", "bx2"}, idsOf(root.Attachments().Get("x")))
	assert.Equal(t, []string{"by1"}, idsOf(root.Attachments().Get("y")))
	assert.Nil(t, root.Attachments().Get("z"))

	assert.Equal(t, []string{"<a />", "<c />", "<dx1 />"}, orphanStrings(g))
	assert.True(t, g.IsOrphan("dx1"))
	assert.False(t, g.IsOrphan("bx1"))
	assert.False(t, g.IsOrphan("b"))
}

func TestResolveOutOfOrder(t *testing.T) {
	g, err := Resolve("b", []extension.Declaration{
		attached("bx2", "b", "x"),
		decl("a"),
		attached("by1", "b", "y"),
		decl("b"),
		attached("bx1", "b", "x"),
		decl("c"),
		attached("dx1", "d", "x"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"bx2", "a", "by1", "b", "bx1", "c", "dx1"}, g.IDs())
	assert.Equal(t, "<b>\n"+
		"  x [\n"+
		"    <bx2 />\n"+
		"    <bx1 />\n"+
		"  ]\n"+
		"  y [\n"+
		"    <by1 />\n"+
		"  ]\n"+
		"</b>", g.Root().String())
	assert.Equal(t, []string{"<a />", "<c />", "<dx1 />"}, orphanStrings(g))
}

func TestResolvePermutationKeepsConnectivity(t *testing.T) {
	base, err := Resolve("b", sampleDecls())
	require.NoError(t, err)
	wantOrphans := idsOf(base.Orphans())
	sort.Strings(wantOrphans)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		decls := sampleDecls()
		rng.Shuffle(len(decls), func(a, b int) { decls[a], decls[b] = decls[b], decls[a] })

		g, err := Resolve("b", decls)
		require.NoError(t, err)

		var inputOrder []string
		for _, d := range decls {
			inputOrder = append(inputOrder, d.ID)
		}
		assert.Equal(t, inputOrder, g.IDs())

		gotOrphans := idsOf(g.Orphans())
		sort.Strings(gotOrphans)
		assert.Equal(t, wantOrphans, gotOrphans)

		var wantX []string
		for _, id := range inputOrder {
			if id == "bx1" || id == "bx2" {
				wantX = append(wantX, id)
			}
		}
		assert.Equal(t, wantX, idsOf(g.Root().Attachments().Get("x")))
	}
}

func TestResolveRejectsDuplicates(t *testing.T) {
	cases := [][]extension.Declaration{
		{decl("a"), decl("a")},
		{decl("core"), decl("a"), decl("b"), attached("a", "core", "x")},
		{decl("a"), decl("b"), decl("b"), decl("a")},
	}
	want := []string{"a", "a", "b"}
	for i, decls := range cases {
		g, err := Resolve("core", decls)
		require.Error(t, err)
		assert.Nil(t, g)
		assert.EqualError(t, err, fmt.Sprintf("unexpected duplicate extension id '%s'", want[i]))
		assert.True(t, errors.Is(err, ErrDuplicateID))
		assert.False(t, errors.Is(err, ErrRootNotFound))
	}
}

func TestResolveDuplicateCheckedBeforeRoot(t *testing.T) {
	_, err := Resolve("missing", []extension.Declaration{decl("a"), decl("a")})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestResolveTransitiveAttachment(t *testing.T) {
	g, err := Resolve("app", []extension.Declaration{
		attached("item2", "nav", "items"),
		{ID: "app"},
		attached("nav", "app", "nav"),
		attached("item1", "nav", "items"),
		attached("page", "app", "routes"),
	})
	require.NoError(t, err)
	assert.Empty(t, g.Orphans())

	nav, ok := g.Node("nav")
	require.True(t, ok)
	assert.Equal(t, []string{"item2", "item1"}, idsOf(nav.Attachments().Get("items")))
}

func TestResolveUnreachableChainsAreOrphans(t *testing.T) {
	g, err := Resolve("app", []extension.Declaration{
		{ID: "app"},
		attached("panel", "missing", "main"),
		attached("button", "panel", "actions"),
		attached("icon", "button", "icon"),
		attached("self", "self", "loop"),
		attached("ping", "pong", "x"),
		attached("pong", "ping", "y"),
		attached("ok", "app", "main"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"panel", "button", "icon", "self", "ping", "pong"}, idsOf(g.Orphans()))
	assert.Equal(t, []string{"ok"}, idsOf(g.Root().Attachments().Get("main")))

	panel, ok := g.Node("panel")
	require.True(t, ok)
	assert.Equal(t, []string{"button"}, idsOf(panel.Attachments().Get("actions")),
		"links between unreachable nodes stay in place")

	for _, n := range g.Nodes() {
		inTree := !g.IsOrphan(n.ID())
		listed := false
		for _, o := range g.Orphans() {
			if o == n {
				listed = true
			}
		}
		assert.NotEqual(t, inTree, listed, "node %s must be in exactly one of tree/orphans", n.ID())
	}
}

func TestResolveIgnoresRootAttachPoint(t *testing.T) {
	g, err := Resolve("app", []extension.Declaration{
		attached("app", "child", "x"),
		attached("child", "app", "main"),
	})
	require.NoError(t, err)
	assert.Empty(t, g.Orphans())

	child, ok := g.Node("child")
	require.True(t, ok)
	assert.Equal(t, 0, child.Attachments().Len())
}

func TestResolvePassesDisabledThrough(t *testing.T) {
	disabled := attached("beta", "app", "main")
	disabled.Disabled = true
	disabled.Config = map[string]any{"flag": "beta"}

	g, err := Resolve("app", []extension.Declaration{{ID: "app"}, disabled})
	require.NoError(t, err)

	beta, ok := g.Node("beta")
	require.True(t, ok)
	assert.True(t, beta.Declaration().Disabled)
	assert.Equal(t, "beta", beta.Declaration().Config["flag"])
	assert.False(t, g.IsOrphan("beta"))
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	decls := sampleDecls()
	decls[3].Output = []string{"element"}
	before := make([]extension.Declaration, len(decls))
	for i, d := range decls {
		before[i] = d.Clone()
	}

	g, err := Resolve("b", decls)
	require.NoError(t, err)
	assert.Equal(t, before, decls)

	n, _ := g.Node("bx1")
	got := n.Declaration()
	got.Output[0] = "changed"
	assert.Equal(t, "element", decls[3].Output[0])
	again, _ := g.Node("bx1")
	assert.Equal(t, "element", again.Declaration().Output[0])
}

func TestResolveIsIdempotent(t *testing.T) {
	first, err := Resolve("b", sampleDecls())
	require.NoError(t, err)
	second, err := Resolve("b", sampleDecls())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotSame(t, first.Root(), second.Root())
	assert.Equal(t, first.Root().String(), second.Root().String())
	assert.Equal(t, orphanStrings(first), orphanStrings(second))
}

func TestResolveDeepChain(t *testing.T) {
	const depth = 10000
	decls := []extension.Declaration{{ID: "n0"}}
	for i := 1; i < depth; i++ {
		decls = append(decls, attached(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", i-1), "next"))
	}
	g, err := Resolve("n0", decls)
	require.NoError(t, err)
	assert.Empty(t, g.Orphans())
	assert.Equal(t, depth, g.Len())
}

func TestResolveConcurrentReads(t *testing.T) {
	g, err := Resolve("b", sampleDecls())
	require.NoError(t, err)
	want := g.Root().String()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, g.Root().String())
			_, err := json.Marshal(g.Root())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
