package collab

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propstudio/propstudio/backend-go/internal/document"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
)

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

func pt(x, y int) *preview.Point {
	p := preview.Pt(x, y)
	return &p
}

func TestDocumentStateOperations(t *testing.T) {
	doc := document.NewSampleLayout("layout_1")
	windowID := elementNamed(t, doc, "Window")
	archID := elementNamed(t, doc, "Driveway Arch")

	ds, err := NewDocumentState(doc)
	require.NoError(t, err)
	require.Equal(t, 1, ds.Editor().Len())

	res, err := ds.ApplyOperation("c1", Operation{Type: OpShapeAdd, ElementID: windowID, Point: pt(10, 10)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ServerSeq)
	require.NotEmpty(t, res.ShapeID)
	shapeID := res.ShapeID

	shape, ok := ds.Editor().Shape(shapeID)
	require.True(t, ok)
	assert.Equal(t, 4, shape.PixelCount())
	assert.Equal(t, preview.StatePlacing, shape.State())

	_, err = ds.ApplyOperation("c2", Operation{Type: OpShapeMouseMove, Point: pt(50, 50)})
	assert.ErrorIs(t, err, ErrDragInProgress)
	_, err = ds.ApplyOperation("c2", Operation{Type: OpShapeAdd, ElementID: windowID, Point: pt(0, 0)})
	assert.ErrorIs(t, err, ErrDragInProgress)

	_, err = ds.ApplyOperation("c1", Operation{Type: OpShapeMouseMove, Point: pt(110, 60)})
	require.NoError(t, err)
	res, err = ds.ApplyOperation("c1", Operation{Type: OpShapeMouseUp})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.ServerSeq)

	assert.Equal(t, preview.StateIdle, shape.State())
	assert.Equal(t, preview.Pt(10, 10), preview.Pt(shape.TopLeft().X, shape.TopLeft().Y))
	assert.Equal(t, preview.Pt(110, 60), preview.Pt(shape.BottomRight().X, shape.BottomRight().Y))

	assert.True(t, ds.Dirty())
	snap := ds.Snapshot()
	assert.False(t, ds.Dirty())
	assert.Len(t, snap.Shapes, 2)

	var propID string
	for id, p := range snap.Props {
		if p.ShapeID == shapeID {
			propID = id
			assert.Equal(t, windowID, p.ElementID)
			assert.Equal(t, 4, p.Params.NodeCount)
		}
	}
	require.NotEmpty(t, propID)

	_, err = ds.ApplyOperation("c2", Operation{Type: OpViewZoom, Zoom: 0})
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = ds.ApplyOperation("c2", Operation{Type: OpViewZoom, Zoom: 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, ds.Editor().View().Zoom)

	_, err = ds.ApplyOperation("c2", Operation{Type: OpShapeReconfigure, ShapeID: shapeID, ElementID: archID})
	require.NoError(t, err)
	assert.Equal(t, 16, shape.PixelCount())
	p := ds.Document().Props[propID]
	assert.Equal(t, archID, p.ElementID)
	assert.Equal(t, 16, p.Params.NodeCount)

	_, err = ds.ApplyOperation("c2", Operation{Type: OpShapeReconfigure, ShapeID: shapeID, ElementID: "element_missing"})
	assert.Error(t, err)

	res, err = ds.ApplyOperation("c2", Operation{Type: OpShapeDelete, ShapeID: shapeID})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.ServerSeq)
	_, err = ds.ApplyOperation("c2", Operation{Type: OpShapeDelete, ShapeID: shapeID})
	assert.ErrorIs(t, err, preview.ErrShapeNotFound)

	_, err = ds.ApplyOperation("c2", Operation{Type: "shape.explode"})
	assert.ErrorIs(t, err, ErrUnknownOperation)
	assert.Equal(t, int64(6), ds.ServerSeq())

	snap = ds.Snapshot()
	assert.Len(t, snap.Shapes, 1)
	assert.Empty(t, snap.Props[propID].ShapeID)
}

func TestDocumentStateShapeEdits(t *testing.T) {
	ds, err := NewDocumentState(document.NewSampleLayout("layout_1"))
	require.NoError(t, err)
	arch := ds.Editor().Shapes()[0]
	prop, ok := ds.Document().PropForShape(arch.ID())
	require.True(t, ok)

	t.Run("rotate", func(t *testing.T) {
		_, err := ds.ApplyOperation("c1", Operation{Type: OpShapeRotate, ShapeID: arch.ID(), Degrees: 30})
		require.NoError(t, err)
		assert.Equal(t, 30.0, arch.Rotation())

		_, err = ds.ApplyOperation("c1", Operation{Type: OpShapeRotate, ShapeID: arch.ID(), Degrees: math.Inf(1)})
		assert.ErrorIs(t, err, preview.ErrInvalidRotation)
		_, err = ds.ApplyOperation("c1", Operation{Type: OpShapeRotate, ShapeID: "shape_missing", Degrees: 5})
		assert.ErrorIs(t, err, preview.ErrShapeNotFound)
		assert.Equal(t, 30.0, arch.Rotation())

		_, err = ds.ApplyOperation("c1", Operation{Type: OpShapeRotate, ShapeID: arch.ID()})
		require.NoError(t, err)
	})

	var copyID string
	t.Run("duplicate copies shape and prop", func(t *testing.T) {
		res, err := ds.ApplyOperation("c1", Operation{Type: OpShapeDuplicate, ShapeID: arch.ID()})
		require.NoError(t, err)
		require.NotEmpty(t, res.ShapeID)
		copyID = res.ShapeID
		assert.Equal(t, 2, ds.Editor().Len())
		assert.True(t, ds.Editor().IsSelected(copyID))

		cp, ok := ds.Document().PropForShape(copyID)
		require.True(t, ok)
		assert.NotEqual(t, prop.ID, cp.ID)
		assert.Equal(t, prop.ElementID, cp.ElementID)

		_, err = ds.ApplyOperation("c1", Operation{Type: OpShapeDuplicate, ShapeID: "shape_missing"})
		assert.ErrorIs(t, err, preview.ErrShapeNotFound)
	})

	t.Run("resize rejects bad aspects", func(t *testing.T) {
		c, _ := ds.Editor().Shape(copyID)
		before := c.BottomRight()

		_, err := ds.ApplyOperation("c1", Operation{Type: OpShapeResize})
		assert.ErrorIs(t, err, ErrMissingField)
		_, err = ds.ApplyOperation("c1", Operation{Type: OpShapeResize, Aspect: -1})
		assert.ErrorIs(t, err, preview.ErrInvalidResize)
		_, err = ds.ApplyOperation("c1", Operation{Type: OpShapeResize, Aspect: 1e300})
		assert.ErrorIs(t, err, preview.ErrInvalidResize)
		assert.Equal(t, before, c.BottomRight())

		_, err = ds.ApplyOperation("c1", Operation{Type: OpShapeResize, Aspect: 2})
		require.NoError(t, err)
		assert.Equal(t, 800, c.BottomRight().X-c.TopLeft().X)
	})

	t.Run("match copies the source size", func(t *testing.T) {
		c, _ := ds.Editor().Shape(copyID)
		require.True(t, ds.Editor().Select(arch.ID()))

		_, err := ds.ApplyOperation("c1", Operation{Type: OpShapeMatch})
		assert.ErrorIs(t, err, ErrMissingField)
		_, err = ds.ApplyOperation("c1", Operation{Type: OpShapeMatch, ShapeID: arch.ID()})
		require.NoError(t, err)
		assert.Equal(t, 400, c.BottomRight().X-c.TopLeft().X)
		assert.Equal(t, 200, c.BottomRight().Y-c.TopLeft().Y)
	})

	t.Run("prop configure resizes the shape", func(t *testing.T) {
		_, err := ds.ApplyOperation("c1", Operation{Type: OpPropConfigure, PropID: prop.ID})
		assert.ErrorIs(t, err, ErrMissingField)

		params := prop.Params
		params.NodeCount = 8
		_, err = ds.ApplyOperation("c1", Operation{Type: OpPropConfigure, PropID: prop.ID, Params: &params})
		require.NoError(t, err)
		assert.Equal(t, 8, arch.PixelCount())
		assert.Equal(t, 8, ds.Document().Props[prop.ID].Params.NodeCount)

		params.NodeCount = 2_000_000_000
		_, err = ds.ApplyOperation("c1", Operation{Type: OpPropConfigure, PropID: prop.ID, Params: &params})
		assert.ErrorIs(t, err, propmodel.ErrInvalidConfiguration)
		assert.Equal(t, 8, arch.PixelCount())

		_, err = ds.ApplyOperation("c1", Operation{Type: OpPropConfigure, PropID: "prop_missing", Params: &params})
		assert.ErrorIs(t, err, document.ErrPropNotFound)
	})

	assert.True(t, ds.Dirty())
}

func TestReleasePointer(t *testing.T) {
	doc := document.NewSampleLayout("layout_1")
	windowID := elementNamed(t, doc, "Window")
	ds, err := NewDocumentState(doc)
	require.NoError(t, err)

	_, err = ds.ApplyOperation("c1", Operation{Type: OpShapeAdd, ElementID: windowID, Point: pt(0, 0)})
	require.NoError(t, err)

	ds.ReleasePointer("c2")
	assert.NotNil(t, ds.Editor().Active())

	ds.ReleasePointer("c1")
	assert.Nil(t, ds.Editor().Active())

	_, err = ds.ApplyOperation("c2", Operation{Type: OpShapeMouseDown, Point: pt(500, 500)})
	assert.NoError(t, err)
}

type savedDocs struct {
	docs map[string]*document.Layout
}

func newTestHub(t *testing.T) (*Hub, *savedDocs) {
	t.Helper()
	saved := &savedDocs{docs: map[string]*document.Layout{}}
	load := func(_ context.Context, layoutID string) (*document.Layout, error) {
		if layoutID != "layout_1" {
			return nil, errors.New("no such layout")
		}
		return document.NewSampleLayout(layoutID), nil
	}
	save := func(_ context.Context, layoutID string, doc *document.Layout) error {
		saved.docs[layoutID] = doc
		return nil
	}
	hub := NewHub(load, save, time.Hour)
	go hub.Run()
	return hub, saved
}

// next reads messages queued for c until one of type typ arrives.
func next(t *testing.T, c *Client, typ string) Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.send:
			require.True(t, ok, "client channel closed waiting for %s", typ)
			var msg Message
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Type == typ {
				return msg
			}
		case <-timeout:
			t.Fatalf("no %s message", typ)
		}
	}
}

func submit(t *testing.T, hub *Hub, c *Client, op Operation) {
	t.Helper()
	payload, err := json.Marshal(OperationSubmitPayload{Operation: op})
	require.NoError(t, err)
	hub.Submit(c, &Message{Type: TypeOpSubmit, Payload: payload})
}

func TestHubAppliesAndBroadcasts(t *testing.T) {
	hub, saved := newTestHub(t)

	c1 := NewClient(hub, nil, "user_1", "Ann", "layout_1", "c1")
	c2 := NewClient(hub, nil, "user_2", "Bo", "layout_1", "c2")
	require.NoError(t, hub.Register(c1))

	welcome := next(t, c1, TypeWelcome)
	var w WelcomePayload
	require.NoError(t, json.Unmarshal(welcome.Payload, &w))
	assert.Equal(t, "c1", w.ClientID)

	sync := next(t, c1, TypeDocSync)
	doc, err := document.Parse(sync.Payload)
	require.NoError(t, err)
	windowID := elementNamed(t, doc, "Window")

	frameMsg := next(t, c1, TypeFrame)
	var frame preview.Frame
	require.NoError(t, json.Unmarshal(frameMsg.Payload, &frame))
	assert.Len(t, frame.Shapes, 1)

	require.NoError(t, hub.Register(c2))
	join := next(t, c1, TypePresenceJoin)
	assert.Equal(t, "user_2", join.UserID)
	next(t, c2, TypeWelcome)

	submit(t, hub, c1, Operation{ID: "op1", Type: OpShapeAdd, ElementID: windowID, Point: pt(10, 10)})

	ack := next(t, c1, TypeOpAck)
	var a OperationAckPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &a))
	assert.Equal(t, "op1", a.OperationID)
	assert.Equal(t, int64(1), a.ServerSeq)
	assert.NotEmpty(t, a.ShapeID)

	bc := next(t, c2, TypeOpBroadcast)
	var b OperationBroadcastPayload
	require.NoError(t, json.Unmarshal(bc.Payload, &b))
	assert.Equal(t, OpShapeAdd, b.Operation.Type)
	assert.Equal(t, "user_1", b.UserID)

	frameMsg = next(t, c2, TypeFrame)
	require.NoError(t, json.Unmarshal(frameMsg.Payload, &frame))
	assert.Len(t, frame.Shapes, 2)

	submit(t, hub, c2, Operation{ID: "op2", Type: OpShapeMouseMove, Point: pt(40, 40)})
	nack := next(t, c2, TypeOpNack)
	var n OperationNackPayload
	require.NoError(t, json.Unmarshal(nack.Payload, &n))
	assert.Equal(t, "op2", n.OperationID)

	submit(t, hub, c1, Operation{ID: "op3", Type: OpShapeMouseUp})
	next(t, c1, TypeOpAck)

	hub.Unregister(c1)
	leave := next(t, c2, TypePresenceLeave)
	assert.Equal(t, "user_1", leave.UserID)
	hub.Unregister(c2)
	hub.Stop()

	require.Contains(t, saved.docs, "layout_1")
	assert.Len(t, saved.docs["layout_1"].Shapes, 2)
}

func TestHubRejectsUnknownLayout(t *testing.T) {
	hub, _ := newTestHub(t)
	defer hub.Stop()

	c := NewClient(hub, nil, "user_1", "Ann", "layout_missing", "c1")
	require.NoError(t, hub.Register(c))

	msg := next(t, c, TypeError)
	var e ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &e))
	assert.NotEmpty(t, e.Message)

	select {
	case _, ok := <-c.send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("client channel not closed")
	}
}

func TestHubStopReleasesClients(t *testing.T) {
	hub, saved := newTestHub(t)

	c := NewClient(hub, nil, "user_1", "Ann", "layout_1", "c1")
	require.NoError(t, hub.Register(c))
	sync := next(t, c, TypeDocSync)
	doc, err := document.Parse(sync.Payload)
	require.NoError(t, err)

	submit(t, hub, c, Operation{ID: "op1", Type: OpShapeAdd, ElementID: elementNamed(t, doc, "Window"), Point: pt(5, 5)})
	next(t, c, TypeOpAck)

	hub.Stop()
	require.Contains(t, saved.docs, "layout_1")

	drained := time.After(2 * time.Second)
	for open := true; open; {
		select {
		case _, open = <-c.send:
		case <-drained:
			t.Fatal("client queue not closed by Stop")
		}
	}

	returned := make(chan struct{})
	go func() {
		hub.Unregister(c)
		hub.Submit(c, &Message{Type: TypeOpSubmit})
		assert.ErrorIs(t, hub.Register(NewClient(hub, nil, "user_2", "Bo", "layout_1", "c2")), ErrHubStopped)
		hub.Stop()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("hub calls blocked after Stop")
	}
}

func TestPresenceManager(t *testing.T) {
	pm := NewPresenceManager()
	shapes := map[string]bool{"shape_a": true, "shape_b": true}
	exists := func(id string) bool { return shapes[id] }

	pm.Update("c1", &PresencePayload{UserID: "user_1", Selection: []string{"shape_a", "shape_gone"}}, exists)
	pm.Update("c2", &PresencePayload{UserID: "user_1", Selection: []string{"shape_b"}}, exists)

	all := pm.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, []string{"shape_a"}, all["c1"].Selection)

	assert.False(t, pm.Prune(exists))
	delete(shapes, "shape_b")
	assert.True(t, pm.Prune(exists))
	assert.Empty(t, pm.GetAll()["c2"].Selection)

	pm.Remove("c1")
	assert.NotContains(t, pm.GetAll(), "c1")
	assert.Contains(t, pm.GetAll(), "c2")

	var state PresenceStatePayload
	require.NoError(t, json.Unmarshal(pm.StateMessage().Payload, &state))
	assert.Equal(t, "user_1", state.Presences["c2"].UserID)
}
