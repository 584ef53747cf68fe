package model

import "time"

// UnitKind distinguishes the two resource shapes the ledger manages.
type UnitKind string

const (
	UnitSeat UnitKind = "seat"
	UnitPool UnitKind = "pool"
)

// OccupancyRecord is the durable proof that a delegate holds a unit.
// Exactly one of Seat or PoolID is set, depending on Kind.
type OccupancyRecord struct {
	ID         string    `json:"id"`
	Kind       UnitKind  `json:"kind"`
	Seat       *SeatID   `json:"seat,omitempty"`
	PoolID     string    `json:"poolId,omitempty"`
	OccupantID string    `json:"occupantId"`
	EntityID   string    `json:"entityId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
