package collab

import (
	"encoding/json"

	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
)

type Message struct {
	Type     string          `json:"type"`
	LayoutID string          `json:"layoutId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// PresencePayload is one connection's pointer and selected shape ids. The
// hub fills in UserID and DisplayName.
type PresencePayload struct {
	UserID      string     `json:"userId,omitempty"`
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Selection   []string   `json:"selection,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	// Presences is keyed by client id.
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Document sync
	TypeDocSync = "doc.sync"
	TypeFrame   = "frame"

	// Operation message types
	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

// Operation types
const (
	OpShapeAdd         = "shape.add"
	OpShapeDelete      = "shape.delete"
	OpShapeMouseDown   = "shape.mouseDown"
	OpShapeMouseMove   = "shape.mouseMove"
	OpShapeMouseUp     = "shape.mouseUp"
	OpShapeResize      = "shape.resize"
	OpShapeReconfigure = "shape.reconfigure"
	OpShapeRotate      = "shape.rotate"
	OpShapeDuplicate   = "shape.duplicate"
	OpShapeMatch       = "shape.match"
	OpPropConfigure    = "prop.configure"
	OpViewZoom         = "view.zoom"
)

// Operation is one edit of a layout's preview. Pointer positions are screen
// coordinates of the submitting client's canvas.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientSeq int64  `json:"clientSeq"`

	// For shape.delete, shape.reconfigure, shape.rotate and shape.duplicate.
	// shape.match copies this shape's size onto the rest of the selection.
	ShapeID string `json:"shapeId,omitempty"`

	// For shape.add and shape.reconfigure
	Kind      preview.Kind `json:"kind,omitempty"`
	ElementID string       `json:"elementId,omitempty"`

	// For shape.add and the mouse operations
	Point *preview.Point `json:"point,omitempty"`

	// For shape.resize
	Aspect float64 `json:"aspect,omitempty"`

	// For shape.rotate
	Degrees float64 `json:"degrees,omitempty"`

	// For prop.configure
	PropID string                `json:"propId,omitempty"`
	Params *propmodel.ArchParams `json:"params,omitempty"`

	// For view.zoom
	Zoom float64 `json:"zoom,omitempty"`
}

// OperationSubmitPayload is the payload for op.submit messages
type OperationSubmitPayload struct {
	Operation Operation `json:"operation"`
}

// OperationAckPayload is the payload for op.ack messages
type OperationAckPayload struct {
	OperationID     string `json:"operationId"`
	ServerSeq       int64  `json:"serverSeq"`
	ServerTimestamp int64  `json:"serverTimestamp"`
	// ShapeID is the shape created by shape.add or shape.duplicate.
	ShapeID string `json:"shapeId,omitempty"`
}

// OperationNackPayload is the payload for op.nack messages
type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

// OperationBroadcastPayload is the payload for op.broadcast messages
type OperationBroadcastPayload struct {
	Operation Operation `json:"operation"`
	UserID    string    `json:"userId"`
	ServerSeq int64     `json:"serverSeq"`
}

type WelcomePayload struct {
	ClientID  string `json:"clientId"`
	ServerSeq int64  `json:"serverSeq"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
