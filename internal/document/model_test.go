package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
)

func TestSampleLayoutOpens(t *testing.T) {
	l := NewSampleLayout("layout_sample")

	e, tree, err := l.OpenEditor()
	require.NoError(t, err)
	assert.Equal(t, 1+1+sampleArchLights+1+4, tree.Len())
	require.Equal(t, 1, e.Len())

	s := e.Shapes()[0]
	assert.Equal(t, sampleArchLights, s.PixelCount())
	for _, px := range s.Pixels() {
		assert.NotEmpty(t, px.NodeID())
	}

	propID := l.PropIDs()[0]
	p, err := l.Prop(propID)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), p.ShapeID)
}

func TestParseRoundTrip(t *testing.T) {
	l := NewSampleLayout("layout_sample")
	data, err := json.Marshal(l)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, l.Roots, parsed.Roots)
	assert.Equal(t, l.Shapes, parsed.Shapes)

	tree, err := parsed.Tree()
	require.NoError(t, err)
	orig, err := l.Tree()
	require.NoError(t, err)
	assert.Equal(t, leafIDs(orig), leafIDs(tree))
}

func TestParseRejectsBrokenGraphs(t *testing.T) {
	t.Run("missing child", func(t *testing.T) {
		l := NewEmptyLayout("layout_x", "X")
		l.Elements["a"] = ElementNode{ID: "a", Name: "A", Children: []string{"ghost"}}
		l.Roots = []string{"a"}
		_, err := l.Tree()
		assert.ErrorIs(t, err, elements.ErrNotFound)
	})

	t.Run("cycle", func(t *testing.T) {
		l := NewEmptyLayout("layout_x", "X")
		l.Elements["a"] = ElementNode{ID: "a", Name: "A", Children: []string{"b"}}
		l.Elements["b"] = ElementNode{ID: "b", Name: "B", Children: []string{"a"}}
		l.Roots = []string{"a"}
		_, err := l.Tree()
		assert.ErrorIs(t, err, elements.ErrDuplicateID)
	})

	t.Run("unreachable", func(t *testing.T) {
		l := NewEmptyLayout("layout_x", "X")
		l.Elements["a"] = ElementNode{ID: "a", Name: "A"}
		_, err := l.Tree()
		assert.ErrorIs(t, err, elements.ErrInvalidGraph)
	})

	t.Run("bad prop", func(t *testing.T) {
		l := NewSampleLayout("layout_x")
		for id, p := range l.Props {
			p.Params.LightSize = 0
			l.Props[id] = p
		}
		data, err := json.Marshal(l)
		require.NoError(t, err)
		_, err = Parse(data)
		assert.ErrorIs(t, err, propmodel.ErrInvalidConfiguration)
	})
}

func TestCapture(t *testing.T) {
	l := NewSampleLayout("layout_sample")
	e, _, err := l.OpenEditor()
	require.NoError(t, err)

	s := e.Shapes()[0]
	s.MoveTo(0, 0)
	e.SetZoom(1.5)
	l.Capture(e)
	assert.Equal(t, preview.XY{X: 0, Y: 0}, l.Shapes[0].TopLeft)
	assert.Equal(t, 1.5, l.View.Zoom)

	e.RemoveShape(s.ID())
	l.Capture(e)
	assert.Empty(t, l.Shapes)
	p, err := l.Prop(l.PropIDs()[0])
	require.NoError(t, err)
	assert.Empty(t, p.ShapeID)
}

func TestSetProp(t *testing.T) {
	l := NewSampleLayout("layout_sample")
	tree, err := l.Tree()
	require.NoError(t, err)
	window := tree.Roots()[0].Children()[1]

	err = l.SetProp(Prop{ID: "prop_w", Kind: propmodel.KindArch, ElementID: window.ID(),
		Params: propmodel.ArchParams{NodeCount: 4, LightSize: 0}})
	assert.ErrorIs(t, err, propmodel.ErrInvalidConfiguration)

	err = l.SetProp(Prop{ID: "prop_w", Kind: propmodel.KindArch, ElementID: "elem_missing",
		Params: propmodel.ArchParams{NodeCount: 4, LightSize: 1}})
	assert.ErrorIs(t, err, elements.ErrNotFound)

	require.NoError(t, l.SetProp(Prop{ID: "prop_w", Kind: propmodel.KindArch, ElementID: window.ID(),
		Params: propmodel.ArchParams{NodeCount: 4, LightSize: 1}}))
	_, err = l.Prop("prop_w")
	assert.NoError(t, err)
	_, err = l.Prop("prop_none")
	assert.ErrorIs(t, err, ErrPropNotFound)
}

func leafIDs(tree *elements.Tree) []string {
	var ids []string
	for _, r := range tree.Roots() {
		for _, leaf := range elements.LeafNodes(r) {
			ids = append(ids, leaf.ID())
		}
	}
	return ids
}
