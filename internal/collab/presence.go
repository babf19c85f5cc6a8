package collab

import (
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
)

// PresenceManager tracks the cursor and shape selection of every connection
// in a room, keyed by client id so two tabs of one user stay apart. It is
// only touched from the hub goroutine.
type PresenceManager struct {
	presences map[string]*PresencePayload
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

// Update stores p for clientID. Selected ids for which exists is false are
// dropped.
func (pm *PresenceManager) Update(clientID string, p *PresencePayload, exists func(shapeID string) bool) {
	p.Selection = slices.DeleteFunc(p.Selection, func(id string) bool { return !exists(id) })
	pm.presences[clientID] = p
}

func (pm *PresenceManager) Remove(clientID string) {
	delete(pm.presences, clientID)
}

// Prune drops deleted shapes from every selection and reports whether any
// selection changed.
func (pm *PresenceManager) Prune(exists func(shapeID string) bool) bool {
	changed := false
	for _, p := range pm.presences {
		n := len(p.Selection)
		p.Selection = slices.DeleteFunc(p.Selection, func(id string) bool { return !exists(id) })
		if len(p.Selection) != n {
			changed = true
		}
	}
	return changed
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	return maps.Clone(pm.presences)
}

// StateMessage is the presence.state message sent to joining clients and
// after a prune.
func (pm *PresenceManager) StateMessage() *Message {
	payload, err := json.Marshal(PresenceStatePayload{Presences: pm.GetAll()})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypePresenceState,
		Payload: payload,
	}
}
