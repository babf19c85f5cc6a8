// Package elements models the logical light hierarchy: leaves are single
// lights, groups are named collections. Display shapes only see it through the
// Node interface.
package elements

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/propstudio/propstudio/backend-go/internal/typeid"
)

var (
	ErrNotFound     = errors.New("element not found")
	ErrDuplicateID  = errors.New("duplicate element id")
	ErrInvalidGraph = errors.New("invalid element graph")
)

// Node is the read-only view of a logical element.
type Node interface {
	ID() string
	IsLeaf() bool
	Children() []Node
}

// Registry resolves element ids to nodes.
type Registry interface {
	Lookup(id string) (Node, bool)
}

// NameChecker keeps element names unique within a tree.
type NameChecker interface {
	IsNameDuplicated(name string) bool
	Uniquify(name string) string
}

// Element is a node of a Tree.
type Element struct {
	id       string
	name     string
	parent   *Element
	children []*Element
}

func (e *Element) ID() string {
	return e.id
}

func (e *Element) Name() string {
	return e.name
}

// IsLeaf reports whether e has no children; an empty group counts as a leaf.
func (e *Element) IsLeaf() bool {
	return len(e.children) == 0
}

// Children returns the direct children in insertion order.
func (e *Element) Children() []Node {
	out := make([]Node, len(e.children))
	for i, c := range e.children {
		out[i] = c
	}
	return out
}

func (e *Element) Parent() *Element {
	return e.parent
}

// Tree owns a forest of elements and indexes them by id and name.
type Tree struct {
	roots []*Element
	byID  map[string]*Element
	names map[string]struct{}
}

func NewTree() *Tree {
	return &Tree{
		byID:  make(map[string]*Element),
		names: make(map[string]struct{}),
	}
}

// Add creates an element under parent (nil for a root) with a fresh id. The
// name is made unique within the tree.
func (t *Tree) Add(parent *Element, name string) *Element {
	e, _ := t.Insert(parent, typeid.NewElementID(), t.Uniquify(name))
	return e
}

// Insert creates an element with a caller-provided id, used when loading a
// persisted tree. Names are kept as given.
func (t *Tree) Insert(parent *Element, id, name string) (*Element, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidGraph)
	}
	if _, ok := t.byID[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	if parent != nil && t.byID[parent.id] != parent {
		return nil, fmt.Errorf("%w: parent %s", ErrNotFound, parent.id)
	}

	e := &Element{id: id, name: name, parent: parent}
	if parent == nil {
		t.roots = append(t.roots, e)
	} else {
		parent.children = append(parent.children, e)
	}
	t.byID[id] = e
	t.names[name] = struct{}{}
	return e, nil
}

// Rename changes an element's name, uniquifying it when another element
// already uses it.
func (t *Tree) Rename(e *Element, name string) string {
	if name == e.name {
		return name
	}
	delete(t.names, e.name)
	if t.IsNameDuplicated(name) {
		name = t.Uniquify(name)
	}
	e.name = name
	t.names[name] = struct{}{}
	return name
}

// Lookup implements Registry.
func (t *Tree) Lookup(id string) (Node, bool) {
	e, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return e, true
}

// Element returns the concrete element for id.
func (t *Tree) Element(id string) (*Element, bool) {
	e, ok := t.byID[id]
	return e, ok
}

func (t *Tree) Roots() []*Element {
	return t.roots
}

func (t *Tree) Len() int {
	return len(t.byID)
}

func (t *Tree) IsNameDuplicated(name string) bool {
	_, ok := t.names[name]
	return ok
}

// Uniquify returns name unchanged if it is free, otherwise the first free
// "name N" with N counting up from 2. A trailing number already on the name
// is used as the starting point.
func (t *Tree) Uniquify(name string) string {
	if !t.IsNameDuplicated(name) {
		return name
	}

	base, n := splitNumberSuffix(name)
	for i := max(n+1, 2); ; i++ {
		candidate := base + " " + strconv.Itoa(i)
		if !t.IsNameDuplicated(candidate) {
			return candidate
		}
	}
}

func splitNumberSuffix(name string) (string, int) {
	idx := strings.LastIndexByte(name, ' ')
	if idx < 0 {
		return name, 0
	}
	n, err := strconv.Atoi(name[idx+1:])
	if err != nil || n < 0 {
		return name, 0
	}
	return name[:idx], n
}
