package layout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/propstudio/propstudio/backend-go/internal/adapter"
	"github.com/propstudio/propstudio/backend-go/internal/document"
	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
	"github.com/propstudio/propstudio/backend-go/internal/store"
	"github.com/propstudio/propstudio/backend-go/internal/typeid"
)

var (
	ErrNotFound  = errors.New("layout not found")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid request")
)

type Service struct {
	store       store.Store
	defaultZoom float64
}

func NewService(st store.Store) *Service {
	return &Service{store: st, defaultZoom: preview.DefaultView().Zoom}
}

// WithDefaultZoom sets the zoom new layouts open at.
func (s *Service) WithDefaultZoom(zoom float64) *Service {
	if zoom > 0 {
		s.defaultZoom = zoom
	}
	return s
}

type Layout struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toLayout(l store.Layout) *Layout {
	return &Layout{
		ID:        l.ID,
		Name:      l.Name,
		OwnerID:   l.OwnerID,
		CreatedAt: l.CreatedAt.Format(time.RFC3339),
		UpdatedAt: l.UpdatedAt.Format(time.RFC3339),
	}
}

// Create stores a new layout and seeds its first document, either empty or
// the sample yard.
func (s *Service) Create(ctx context.Context, name, ownerID string, sample bool) (*Layout, error) {
	layoutID := typeid.NewLayoutID()

	l, err := s.store.CreateLayout(ctx, store.Layout{ID: layoutID, Name: name, OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("create layout: %w", err)
	}

	var doc *document.Layout
	if sample {
		doc = document.NewSampleLayout(layoutID)
		doc.Layout.Name = name
	} else {
		doc = document.NewEmptyLayout(layoutID, name)
	}
	doc.View.Zoom = s.defaultZoom
	doc.Layout.CreatedAt = l.CreatedAt.Format(time.RFC3339)
	doc.Layout.UpdatedAt = doc.Layout.CreatedAt

	if _, err := s.save(ctx, layoutID, doc); err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	return toLayout(l), nil
}

func (s *Service) Get(ctx context.Context, layoutID, userID string) (*Layout, error) {
	l, err := s.authorize(ctx, layoutID, userID)
	if err != nil {
		return nil, err
	}
	return toLayout(l), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Layout, error) {
	stored, err := s.store.ListLayouts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}

	layouts := make([]Layout, len(stored))
	for i, l := range stored {
		layouts[i] = *toLayout(l)
	}
	return layouts, nil
}

func (s *Service) Delete(ctx context.Context, layoutID, userID string) error {
	if _, err := s.authorize(ctx, layoutID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteLayout(ctx, layoutID); err != nil {
		return mapStoreError(err, "delete layout")
	}
	return nil
}

// Document returns the latest stored document as is.
func (s *Service) Document(ctx context.Context, layoutID, userID string) (json.RawMessage, error) {
	if _, err := s.authorize(ctx, layoutID, userID); err != nil {
		return nil, err
	}
	snap, err := s.store.LatestSnapshot(ctx, layoutID)
	if err != nil {
		return nil, mapStoreError(err, "get snapshot")
	}
	return snap.Document, nil
}

// SaveDocument replaces the layout document after checking that it parses
// and that its shapes load. It returns the new snapshot version.
func (s *Service) SaveDocument(ctx context.Context, layoutID, userID string, raw []byte) (int, error) {
	if _, err := s.authorize(ctx, layoutID, userID); err != nil {
		return 0, err
	}

	doc, err := document.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, _, err := doc.OpenEditor(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	doc.Layout.ID = layoutID

	return s.save(ctx, layoutID, doc)
}

// Load returns the layout document for a user allowed to edit it.
func (s *Service) Load(ctx context.Context, layoutID, userID string) (*document.Layout, error) {
	if _, err := s.authorize(ctx, layoutID, userID); err != nil {
		return nil, err
	}
	return s.load(ctx, layoutID)
}

// Latest returns the stored document without an ownership check. The
// collaboration rooms load through it once a connection was authorized.
func (s *Service) Latest(ctx context.Context, layoutID string) (*document.Layout, error) {
	return s.load(ctx, layoutID)
}

// Save stores doc as the next snapshot without an ownership check; the
// collaboration rooms call it for layouts they were opened on.
func (s *Service) Save(ctx context.Context, layoutID string, doc *document.Layout) (int, error) {
	return s.save(ctx, layoutID, doc)
}

// AddShapeRequest places a shape over an element. Points are in layout
// coordinates.
type AddShapeRequest struct {
	Kind        preview.Kind          `json:"kind"`
	ElementID   string                `json:"elementId"`
	TopLeft     preview.Point         `json:"topLeft"`
	BottomRight preview.Point         `json:"bottomRight"`
	Params      *propmodel.ArchParams `json:"params,omitempty"`
}

type AddShapeResult struct {
	Shape preview.Record `json:"shape"`
	Prop  document.Prop  `json:"prop"`
}

// AddShape places a display shape over an element and records the prop that
// drives it.
func (s *Service) AddShape(ctx context.Context, layoutID, userID string, req AddShapeRequest) (*AddShapeResult, error) {
	if req.Kind == "" {
		req.Kind = preview.KindArch
	}

	var result *AddShapeResult
	err := s.edit(ctx, layoutID, userID, func(doc *document.Layout, ed *preview.Editor, tree *elements.Tree) error {
		selection, ok := tree.Lookup(req.ElementID)
		if !ok {
			return fmt.Errorf("%w: element %s not found", ErrInvalid, req.ElementID)
		}

		params := propmodel.ArchParams{LightSize: preview.DefaultPixelSize}
		if req.Params != nil {
			params = *req.Params
		}

		prop, err := adapter.Build(selection, propmodel.Kind(req.Kind), params, req.TopLeft, req.BottomRight, ed.View())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		shape := prop.Shape()
		ed.AddShape(shape)

		params.NodeCount = shape.PixelCount()
		p := document.Prop{
			ID:        typeid.NewPropID(),
			Kind:      prop.Model().Kind(),
			ElementID: selection.ID(),
			ShapeID:   shape.ID(),
			Params:    params,
		}
		if err := doc.SetProp(p); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}

		result = &AddShapeResult{Shape: shape.Record(), Prop: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteShape removes a shape. Props drawn by it stay, unplaced.
func (s *Service) DeleteShape(ctx context.Context, layoutID, userID, shapeID string) error {
	return s.edit(ctx, layoutID, userID, func(_ *document.Layout, ed *preview.Editor, _ *elements.Tree) error {
		if !ed.RemoveShape(shapeID) {
			return fmt.Errorf("%w: %s", preview.ErrShapeNotFound, shapeID)
		}
		return nil
	})
}

// SetProp reconfigures a prop. A placed prop's shape is resized to the new
// node count.
func (s *Service) SetProp(ctx context.Context, layoutID, userID, propID string, params propmodel.ArchParams) (*document.Prop, error) {
	var out document.Prop
	err := s.edit(ctx, layoutID, userID, func(doc *document.Layout, ed *preview.Editor, _ *elements.Tree) error {
		if _, err := doc.Prop(propID); err != nil {
			return err
		}
		p, err := doc.ConfigureProp(ed, propID, params)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetBackground sets the image the preview is drawn over.
func (s *Service) SetBackground(ctx context.Context, layoutID, userID string, bg document.Background) error {
	doc, err := s.Load(ctx, layoutID, userID)
	if err != nil {
		return err
	}
	doc.Background = &bg
	_, err = s.save(ctx, layoutID, doc)
	return err
}

// LightInfo is one light of a placed prop.
type LightInfo struct {
	Index     int     `json:"index"`
	ElementID string  `json:"elementId,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	LocalX    int     `json:"localX"`
	LocalY    int     `json:"localY"`
	ScreenX   int     `json:"screenX"`
	ScreenY   int     `json:"screenY"`
}

// Lights pairs a placed prop's model nodes with the pixels of its shape.
func (s *Service) Lights(ctx context.Context, layoutID, userID, propID string) ([]LightInfo, error) {
	doc, err := s.Load(ctx, layoutID, userID)
	if err != nil {
		return nil, err
	}
	p, err := doc.Prop(propID)
	if err != nil {
		return nil, err
	}
	ed, _, err := doc.OpenEditor()
	if err != nil {
		return nil, fmt.Errorf("open editor: %w", err)
	}
	shape, ok := ed.Shape(p.ShapeID)
	if !ok {
		return nil, fmt.Errorf("%w: prop %s is not placed", preview.ErrShapeNotFound, propID)
	}

	bound, err := p.Bind(shape)
	if err != nil {
		return nil, err
	}
	lights, err := bound.Lights()
	if err != nil {
		return nil, err
	}

	out := make([]LightInfo, len(lights))
	for i, l := range lights {
		out[i] = LightInfo{
			Index:     l.Index,
			ElementID: l.ElementID,
			X:         l.Node.X,
			Y:         l.Node.Y,
			LocalX:    l.Local.X,
			LocalY:    l.Local.Y,
			ScreenX:   l.Pixel.ScreenX,
			ScreenY:   l.Pixel.ScreenY,
		}
	}
	return out, nil
}

// Frame compiles the pixel frame of the stored layout.
func (s *Service) Frame(ctx context.Context, layoutID, userID string) (preview.Frame, error) {
	doc, err := s.Load(ctx, layoutID, userID)
	if err != nil {
		return preview.Frame{}, err
	}
	ed, _, err := doc.OpenEditor()
	if err != nil {
		return preview.Frame{}, fmt.Errorf("open editor: %w", err)
	}
	return ed.Frame(), nil
}

// edit loads the document into an editor, applies fn and saves the result.
func (s *Service) edit(ctx context.Context, layoutID, userID string, fn func(*document.Layout, *preview.Editor, *elements.Tree) error) error {
	doc, err := s.Load(ctx, layoutID, userID)
	if err != nil {
		return err
	}
	ed, tree, err := doc.OpenEditor()
	if err != nil {
		return fmt.Errorf("open editor: %w", err)
	}

	if err := fn(doc, ed, tree); err != nil {
		return err
	}

	doc.Capture(ed)
	_, err = s.save(ctx, layoutID, doc)
	return err
}

func (s *Service) authorize(ctx context.Context, layoutID, userID string) (store.Layout, error) {
	l, err := s.store.GetLayout(ctx, layoutID)
	if err != nil {
		return store.Layout{}, mapStoreError(err, "get layout")
	}
	if l.OwnerID != userID {
		return store.Layout{}, ErrForbidden
	}
	return l, nil
}

func (s *Service) load(ctx context.Context, layoutID string) (*document.Layout, error) {
	snap, err := s.store.LatestSnapshot(ctx, layoutID)
	if err != nil {
		return nil, mapStoreError(err, "get snapshot")
	}
	doc, err := document.Parse(snap.Document)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", snap.ID, err)
	}
	return doc, nil
}

func (s *Service) save(ctx context.Context, layoutID string, doc *document.Layout) (int, error) {
	doc.Layout.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("marshal document: %w", err)
	}
	snap, err := s.store.SaveSnapshot(ctx, typeid.NewSnapshotID(), layoutID, data)
	if err != nil {
		return 0, mapStoreError(err, "save snapshot")
	}
	return snap.Version, nil
}

func mapStoreError(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}
