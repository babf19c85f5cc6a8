package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixUser       = "user"
	PrefixLayout     = "layout"
	PrefixSnapshot   = "snap"
	PrefixOp         = "op"
	PrefixElement    = "elem"
	PrefixShape      = "shape"
	PrefixProp       = "prop"
	PrefixBackground = "bg"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewUserID() string       { return New(PrefixUser) }
func NewLayoutID() string     { return New(PrefixLayout) }
func NewSnapshotID() string   { return New(PrefixSnapshot) }
func NewOpID() string         { return New(PrefixOp) }
func NewElementID() string    { return New(PrefixElement) }
func NewShapeID() string      { return New(PrefixShape) }
func NewPropID() string       { return New(PrefixProp) }
func NewBackgroundID() string { return New(PrefixBackground) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
