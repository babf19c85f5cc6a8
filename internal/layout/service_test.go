package layout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propstudio/propstudio/backend-go/internal/document"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
	"github.com/propstudio/propstudio/backend-go/internal/store"
)

const owner = "user_owner"

func elementNamed(t *testing.T, doc *document.Layout, name string) string {
	t.Helper()
	for id, e := range doc.Elements {
		if e.Name == name {
			return id
		}
	}
	t.Fatalf("no element named %q", name)
	return ""
}

func newSample(t *testing.T) (*Service, *Layout) {
	t.Helper()
	s := NewService(store.NewMemory())
	l, err := s.Create(context.Background(), "Front", owner, true)
	require.NoError(t, err)
	return s, l
}

func TestCreateAndAccess(t *testing.T) {
	ctx := context.Background()
	s, l := newSample(t)

	got, err := s.Get(ctx, l.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "Front", got.Name)

	_, err = s.Get(ctx, l.ID, "user_other")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Get(ctx, "layout_missing", owner)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, l.ID, list[0].ID)

	doc, err := s.Load(ctx, l.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, l.ID, doc.Layout.ID)
	assert.Equal(t, "Front", doc.Layout.Name)
	assert.Len(t, doc.Shapes, 1)

	empty, err := s.Create(ctx, "Blank", owner, false)
	require.NoError(t, err)
	frame, err := s.Frame(ctx, empty.ID, owner)
	require.NoError(t, err)
	assert.Empty(t, frame.Shapes)

	assert.ErrorIs(t, s.Delete(ctx, l.ID, "user_other"), ErrForbidden)
	require.NoError(t, s.Delete(ctx, l.ID, owner))
	_, err = s.Get(ctx, l.ID, owner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShapeAndPropEditing(t *testing.T) {
	ctx := context.Background()
	s, l := newSample(t)

	frame, err := s.Frame(ctx, l.ID, owner)
	require.NoError(t, err)
	require.Len(t, frame.Shapes, 1)
	assert.Len(t, frame.Shapes[0].Pixels, 16)

	doc, err := s.Load(ctx, l.ID, owner)
	require.NoError(t, err)
	windowID := elementNamed(t, doc, "Window")
	archPropID := doc.PropIDs()[0]
	archShapeID := doc.Shapes[0].ID

	t.Run("add shape over a group", func(t *testing.T) {
		res, err := s.AddShape(ctx, l.ID, owner, AddShapeRequest{
			ElementID:   windowID,
			TopLeft:     preview.Pt(10, 10),
			BottomRight: preview.Pt(110, 60),
		})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Shape.PixelCount)
		assert.Equal(t, preview.XY{X: 10, Y: 10}, res.Shape.TopLeft)
		assert.Equal(t, preview.XY{X: 110, Y: 60}, res.Shape.BottomRight)
		assert.Len(t, res.Shape.NodeIDs, 4)
		assert.Equal(t, 4, res.Prop.Params.NodeCount)
		assert.Equal(t, windowID, res.Prop.ElementID)
		assert.Equal(t, res.Shape.ID, res.Prop.ShapeID)

		frame, err := s.Frame(ctx, l.ID, owner)
		require.NoError(t, err)
		assert.Len(t, frame.Shapes, 2)
	})

	t.Run("add shape rejects bad input", func(t *testing.T) {
		_, err := s.AddShape(ctx, l.ID, owner, AddShapeRequest{ElementID: "element_missing"})
		assert.ErrorIs(t, err, ErrInvalid)

		_, err = s.AddShape(ctx, l.ID, owner, AddShapeRequest{Kind: "Star", ElementID: windowID})
		assert.ErrorIs(t, err, preview.ErrUnknownShapeKind)

		_, err = s.AddShape(ctx, l.ID, "user_other", AddShapeRequest{ElementID: windowID})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("set prop resizes its shape", func(t *testing.T) {
		p, err := s.SetProp(ctx, l.ID, owner, archPropID, propmodel.ArchParams{NodeCount: 10, LightSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 10, p.Params.NodeCount)

		doc, err := s.Load(ctx, l.ID, owner)
		require.NoError(t, err)
		for _, rec := range doc.Shapes {
			if rec.ID == archShapeID {
				assert.Equal(t, 10, rec.PixelCount)
			}
		}

		lights, err := s.Lights(ctx, l.ID, owner, archPropID)
		require.NoError(t, err)
		require.Len(t, lights, 10)
		for i, light := range lights {
			assert.Equal(t, i, light.Index)
			assert.NotEmpty(t, light.ElementID)
		}

		_, err = s.SetProp(ctx, l.ID, owner, archPropID, propmodel.ArchParams{NodeCount: 0, LightSize: 2})
		assert.ErrorIs(t, err, propmodel.ErrInvalidConfiguration)
		_, err = s.SetProp(ctx, l.ID, owner, archPropID, propmodel.ArchParams{NodeCount: 2_000_000_000, LightSize: 2})
		assert.ErrorIs(t, err, propmodel.ErrInvalidConfiguration)
		lights, err = s.Lights(ctx, l.ID, owner, archPropID)
		require.NoError(t, err)
		assert.Len(t, lights, 10)

		_, err = s.SetProp(ctx, l.ID, owner, "prop_missing", propmodel.ArchParams{NodeCount: 3, LightSize: 2})
		assert.ErrorIs(t, err, document.ErrPropNotFound)
	})

	t.Run("delete shape unplaces its prop", func(t *testing.T) {
		require.NoError(t, s.DeleteShape(ctx, l.ID, owner, archShapeID))
		assert.ErrorIs(t, s.DeleteShape(ctx, l.ID, owner, archShapeID), preview.ErrShapeNotFound)

		doc, err := s.Load(ctx, l.ID, owner)
		require.NoError(t, err)
		p, err := doc.Prop(archPropID)
		require.NoError(t, err)
		assert.Empty(t, p.ShapeID)

		_, err = s.Lights(ctx, l.ID, owner, archPropID)
		assert.ErrorIs(t, err, preview.ErrShapeNotFound)
	})
}

func TestSaveDocument(t *testing.T) {
	ctx := context.Background()
	s, l := newSample(t)

	raw, err := s.Document(ctx, l.ID, owner)
	require.NoError(t, err)

	version, err := s.SaveDocument(ctx, l.ID, owner, raw)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	_, err = s.SaveDocument(ctx, l.ID, owner, []byte(`{"elements":`))
	assert.ErrorIs(t, err, ErrInvalid)

	// a root pointing at a missing element
	_, err = s.SaveDocument(ctx, l.ID, owner, []byte(`{"elements":{},"roots":["element_x"]}`))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.SaveDocument(ctx, l.ID, "user_other", raw)
	assert.ErrorIs(t, err, ErrForbidden)
}
