// Package queue carries reservation events over RabbitMQ and consumes the
// feeds the engine depends on.
package queue

import (
	"time"

	"github.com/iliyamo/conference-reservation/internal/model"
)

// Queue names.  Both are durable.
const (
	ReservationsQueue = "conference.reservations"
	PopulationQueue   = "entity.population"
)

// EventType names what happened in a committed transaction.
type EventType string

const (
	EventSeatsReserved     EventType = "seating.reserved"
	EventSeatsReleased     EventType = "seating.released"
	EventSessionsSubmitted EventType = "sessions.submitted"
)

// Event is published after a reservation, release or submission commits.
// Consumers get enough context to audit or notify without reading the
// ledger.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	DelegateID string            `json:"delegate_id"`
	EntityID   string            `json:"entity_id,omitempty"`
	Seats      []model.SeatID    `json:"seats,omitempty"`
	Selections *model.Selections `json:"selections,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// PopulationUpdate is what the registration system sends when an entity's
// delegate count changes.
type PopulationUpdate struct {
	EntityID   string `json:"entity_id"`
	Name       string `json:"name"`
	Population int    `json:"population"`
}
