package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/propstudio/propstudio/backend-go/internal/document"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
)

// Loader returns the stored document of a layout.
type Loader func(ctx context.Context, layoutID string) (*document.Layout, error)

// Saver stores a document as the layout's next snapshot.
type Saver func(ctx context.Context, layoutID string, doc *document.Layout) error

const saveTimeout = 10 * time.Second

// ErrHubStopped is returned by Register once Run has returned.
var ErrHubStopped = errors.New("collab hub stopped")

// Room is the set of clients editing one layout and the shared state they
// edit.
type Room struct {
	layoutID string
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
	state    *DocumentState
}

func NewRoom(layoutID string, state *DocumentState) *Room {
	return &Room{
		layoutID: layoutID,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
		state:    state,
	}
}

type inbound struct {
	client *Client
	msg    *Message
}

// Hub owns every room. All room state, including each room's editor, is only
// touched from the Run goroutine; clients talk to it over channels.
type Hub struct {
	rooms      map[string]*Room // layoutID -> room
	register   chan *Client
	unregister chan *Client
	incoming   chan inbound
	stop       chan chan struct{}
	// done is closed when Run returns.
	done chan struct{}

	load     Loader
	save     Saver
	autosave time.Duration
}

func NewHub(load Loader, save Saver, autosave time.Duration) *Hub {
	if autosave <= 0 {
		autosave = 10 * time.Second
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan inbound, 256),
		stop:       make(chan chan struct{}),
		done:       make(chan struct{}),
		load:       load,
		save:       save,
		autosave:   autosave,
	}
}

// Run serves the hub until Stop. Rooms are saved every autosave interval and
// once more on the way out.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.autosave)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case in := <-h.incoming:
			h.handleMessage(in.client, in.msg)
		case <-ticker.C:
			h.saveDirty()
		case stopped := <-h.stop:
			h.saveDirty()
			h.closeClients()
			close(stopped)
			return
		}
	}
}

// Stop saves every dirty room, closes every client's queue and ends Run.
// Calls after the first return at once.
func (h *Hub) Stop() {
	stopped := make(chan struct{})
	select {
	case h.stop <- stopped:
		<-stopped
	case <-h.done:
	}
}

// Register adds client to the room of its layout, opening the room on first
// use.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes client. It does nothing once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Submit queues a message from client for the hub goroutine. Messages
// submitted after Stop are dropped.
func (h *Hub) Submit(client *Client, msg *Message) {
	select {
	case h.incoming <- inbound{client: client, msg: msg}:
	case <-h.done:
	}
}

func (h *Hub) openRoom(layoutID string) (*Room, error) {
	if room, ok := h.rooms[layoutID]; ok {
		return room, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	doc, err := h.load(ctx, layoutID)
	if err != nil {
		return nil, err
	}
	state, err := NewDocumentState(doc, previewLogger(layoutID))
	if err != nil {
		return nil, err
	}

	room := NewRoom(layoutID, state)
	h.rooms[layoutID] = room
	return room, nil
}

func (h *Hub) addClient(client *Client) {
	room, err := h.openRoom(client.LayoutID)
	if err != nil {
		slog.Error("open room", "error", err, "layout", client.LayoutID)
		client.Send(errorMessage("layout could not be opened"))
		client.close()
		return
	}
	room.clients[client.ClientID] = client

	welcome, _ := json.Marshal(WelcomePayload{ClientID: client.ClientID, ServerSeq: room.state.ServerSeq()})
	client.Send(&Message{Type: TypeWelcome, LayoutID: room.layoutID, Payload: welcome})

	doc, err := json.Marshal(room.state.Document())
	if err != nil {
		slog.Error("marshal document", "error", err, "layout", room.layoutID)
	} else {
		client.Send(&Message{Type: TypeDocSync, LayoutID: room.layoutID, Seq: room.state.ServerSeq(), Payload: doc})
	}
	client.Send(frameMessage(room))

	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	h.broadcastToRoom(room, &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "layout", client.LayoutID)
}

func (h *Hub) removeClient(client *Client) {
	room, ok := h.rooms[client.LayoutID]
	if !ok || room.clients[client.ClientID] != client {
		return
	}

	delete(room.clients, client.ClientID)
	client.close()
	room.presence.Remove(client.ClientID)
	room.state.ReleasePointer(client.ClientID)

	if len(room.clients) == 0 {
		h.saveRoom(room)
		delete(h.rooms, client.LayoutID)
		slog.Info("client left", "user", client.UserID, "layout", client.LayoutID)
		return
	}

	leavePayload, _ := json.Marshal(PresenceLeavePayload{
		UserID: client.UserID,
	})
	h.broadcastToRoom(room, &Message{
		Type:    TypePresenceLeave,
		UserID:  client.UserID,
		Payload: leavePayload,
	}, "")

	slog.Info("client left", "user", client.UserID, "layout", client.LayoutID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	room, ok := h.rooms[sender.LayoutID]
	if !ok || room.clients[sender.ClientID] != sender {
		return
	}

	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(room, sender, msg)
	case TypeOpSubmit:
		h.handleOpSubmit(room, sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handlePresenceUpdate(room *Room, sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.UserID = sender.UserID
	presence.DisplayName = sender.DisplayName
	room.presence.Update(sender.ClientID, &presence, room.hasShape)

	outPayload, _ := json.Marshal(presence)
	h.broadcastToRoom(room, &Message{
		Type:    TypePresenceUpdate,
		UserID:  sender.UserID,
		Payload: outPayload,
	}, sender.ClientID)
}

func (h *Hub) handleOpSubmit(room *Room, sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		slog.Warn("invalid operation payload", "error", err, "user", sender.UserID)
		sender.Send(errorMessage("invalid operation payload"))
		return
	}
	op := submit.Operation

	version := room.state.Editor().Version()
	res, err := room.state.ApplyOperation(sender.ClientID, op)
	if err != nil {
		slog.Debug("operation rejected", "error", err, "op", op.Type, "layout", room.layoutID)
		nack, _ := json.Marshal(OperationNackPayload{OperationID: op.ID, Reason: err.Error()})
		sender.Send(&Message{Type: TypeOpNack, Payload: nack})
		return
	}

	ack, _ := json.Marshal(OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       res.ServerSeq,
		ServerTimestamp: GetServerTimestamp(),
		ShapeID:         res.ShapeID,
	})
	sender.Send(&Message{Type: TypeOpAck, Seq: res.ServerSeq, Payload: ack})

	broadcast, _ := json.Marshal(OperationBroadcastPayload{
		Operation: op,
		UserID:    sender.UserID,
		ServerSeq: res.ServerSeq,
	})
	h.broadcastToRoom(room, &Message{
		Type:    TypeOpBroadcast,
		UserID:  sender.UserID,
		Seq:     res.ServerSeq,
		Payload: broadcast,
	}, sender.ClientID)

	if room.state.Editor().Version() != version {
		h.broadcastToRoom(room, frameMessage(room), "")
	}
	if op.Type == OpShapeDelete && room.presence.Prune(room.hasShape) {
		if stateMsg := room.presence.StateMessage(); stateMsg != nil {
			h.broadcastToRoom(room, stateMsg, "")
		}
	}
}

// closeClients ends every write pump. Called by Run on the way out.
func (h *Hub) closeClients() {
	for _, room := range h.rooms {
		for _, c := range room.clients {
			c.close()
		}
	}
}

func (h *Hub) saveDirty() {
	for _, room := range h.rooms {
		h.saveRoom(room)
	}
}

func (h *Hub) saveRoom(room *Room) {
	if !room.state.Dirty() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := h.save(ctx, room.layoutID, room.state.Snapshot()); err != nil {
		slog.Error("save layout", "error", err, "layout", room.layoutID)
		room.state.dirty = true
		return
	}
	slog.Info("layout saved", "layout", room.layoutID, "seq", room.state.ServerSeq())
}

func (h *Hub) broadcastToRoom(room *Room, msg *Message, excludeClientID string) {
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			c.Send(msg)
		}
	}
}

func (r *Room) hasShape(id string) bool {
	_, ok := r.state.Editor().Shape(id)
	return ok
}

func frameMessage(room *Room) *Message {
	frame := room.state.Editor().Frame()
	payload, err := json.Marshal(frame)
	if err != nil {
		slog.Error("marshal frame", "error", err, "layout", room.layoutID)
		return errorMessage("frame unavailable")
	}
	return &Message{Type: TypeFrame, LayoutID: room.layoutID, Seq: room.state.ServerSeq(), Payload: payload}
}

func errorMessage(text string) *Message {
	payload, _ := json.Marshal(ErrorPayload{Message: text})
	return &Message{Type: TypeError, Payload: payload}
}

func previewLogger(layoutID string) preview.Option {
	return preview.WithLogger(slog.With("layout", layoutID))
}
