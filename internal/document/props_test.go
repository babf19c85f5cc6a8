package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propstudio/propstudio/backend-go/internal/adapter"
	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
)

func openSample(t *testing.T) (*Layout, *preview.Editor, *elements.Tree, Prop) {
	t.Helper()
	l := NewSampleLayout("layout_sample")
	ed, tree, err := l.OpenEditor()
	require.NoError(t, err)
	p, err := l.Prop(l.PropIDs()[0])
	require.NoError(t, err)
	return l, ed, tree, p
}

func TestPropBind(t *testing.T) {
	_, ed, _, p := openSample(t)
	s, ok := ed.Shape(p.ShapeID)
	require.True(t, ok)

	bound, err := p.Bind(s)
	require.NoError(t, err)
	assert.Len(t, bound.Model().Nodes(), sampleArchLights)

	p.Params.NodeCount = 3
	_, err = p.Bind(s)
	assert.ErrorIs(t, err, adapter.ErrTopologyMismatch)

	p.Kind = "Star"
	_, err = p.Bind(s)
	assert.ErrorIs(t, err, propmodel.ErrInvalidConfiguration)
}

func TestPropForShape(t *testing.T) {
	l, _, _, p := openSample(t)

	got, ok := l.PropForShape(p.ShapeID)
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)

	_, ok = l.PropForShape("")
	assert.False(t, ok)
	_, ok = l.PropForShape("shape_missing")
	assert.False(t, ok)
}

func TestReconfigureShapeMovesProp(t *testing.T) {
	l, ed, tree, p := openSample(t)
	window := tree.Roots()[0].Children()[1]

	require.NoError(t, l.ReconfigureShape(ed, p.ShapeID, window))

	s, _ := ed.Shape(p.ShapeID)
	assert.Equal(t, 4, s.PixelCount())
	got, err := l.Prop(p.ID)
	require.NoError(t, err)
	assert.Equal(t, window.ID(), got.ElementID)
	assert.Equal(t, 4, got.Params.NodeCount)
	assert.True(t, ed.Dirty())

	err = l.ReconfigureShape(ed, "shape_missing", window)
	assert.ErrorIs(t, err, preview.ErrShapeNotFound)
}

func TestDuplicateShapeCopiesProp(t *testing.T) {
	l, ed, _, p := openSample(t)

	c, err := l.DuplicateShape(ed, p.ShapeID)
	require.NoError(t, err)
	assert.Equal(t, 2, ed.Len())
	assert.NotEqual(t, p.ShapeID, c.ID())

	cp, ok := l.PropForShape(c.ID())
	require.True(t, ok)
	assert.NotEqual(t, p.ID, cp.ID)
	assert.Equal(t, p.ElementID, cp.ElementID)
	assert.Equal(t, p.Params, cp.Params)
	assert.Len(t, l.Props, 2)

	_, err = l.DuplicateShape(ed, "shape_missing")
	assert.ErrorIs(t, err, preview.ErrShapeNotFound)
	assert.Equal(t, 2, ed.Len())
}

func TestConfigureProp(t *testing.T) {
	l, ed, _, p := openSample(t)

	params := p.Params
	params.NodeCount = 10
	got, err := l.ConfigureProp(ed, p.ID, params)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Params.NodeCount)
	s, _ := ed.Shape(p.ShapeID)
	assert.Equal(t, 10, s.PixelCount())

	params.NodeCount = propmodel.MaxNodeCount + 1
	_, err = l.ConfigureProp(ed, p.ID, params)
	assert.ErrorIs(t, err, propmodel.ErrInvalidConfiguration)
	assert.Equal(t, 10, s.PixelCount())
	stored, _ := l.Prop(p.ID)
	assert.Equal(t, 10, stored.Params.NodeCount)

	_, err = l.ConfigureProp(ed, "prop_missing", params)
	assert.ErrorIs(t, err, ErrPropNotFound)
}

func TestConfigureUnplacedProp(t *testing.T) {
	l, ed, _, p := openSample(t)
	require.True(t, ed.RemoveShape(p.ShapeID))
	l.Capture(ed)

	params := p.Params
	params.NodeCount = 7
	got, err := l.ConfigureProp(ed, p.ID, params)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Params.NodeCount)
	assert.Empty(t, got.ShapeID)
}
