package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitTyped publishes typed data for a user and logs it
func (m *Manager) EmitTyped(userID, module string, data EventData) Event {
	e := m.bus.Publish(Event{
		Type:   data.EventType(),
		UserID: userID,
		Module: module,
		Data:   data,
	})

	payload, _ := json.Marshal(data)
	m.log.Info().
		Str("event_id", e.ID).
		Str("event_type", string(e.Type)).
		Str("user_id", userID).
		Str("module", module).
		RawJSON("data", payload).
		Msg("Event emitted")
	return e
}

// EmitError emits an error event
func (m *Manager) EmitError(userID, module string, err error, context map[string]interface{}) {
	m.EmitTyped(userID, module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}
