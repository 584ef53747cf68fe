package model

import (
	"fmt"
	"sort"
	"time"
)

// Table is one round table at the gala dinner.  Tables are created at
// startup from the configured layout and never change afterwards.
//
// Fields:
//  ID        – stable table number (1-based).
//  Label     – display label shown on the seating chart.
//  SeatCount – number of seats around the table.
type Table struct {
	ID        uint32 // gala_tables.id
	Label     string // gala_tables.label
	SeatCount uint32 // gala_tables.seat_count
}

// SeatID addresses a single seat by table and seat number.
type SeatID struct {
	TableID    uint32 `json:"tableId"`
	SeatNumber uint32 `json:"seatNumber"`
}

func (s SeatID) String() string { return fmt.Sprintf("%d-%d", s.TableID, s.SeatNumber) }

// Seat is the ledger row for a seat.  OccupantID is nil while the seat
// is free.  The occupant's entity and display label are copied onto the
// row when the seat is claimed so the seating chart can be rendered
// without a join against the identity provider.
//
// Fields:
//  TableID          – table the seat belongs to.
//  SeatNumber       – position around the table (1-based).
//  OccupantID       – delegate holding the seat (nil when free).
//  OccupantEntityID – entity of the occupant (nil when free).
//  OccupantLabel    – display label of the occupant.
//  RecordID         – occupancy record identifier of the current hold.
//  HeldAt           – when the current hold was committed.
type Seat struct {
	TableID          uint32     // seats.table_id
	SeatNumber       uint32     // seats.seat_number
	OccupantID       *string    // seats.occupant_id (nullable)
	OccupantEntityID *string    // seats.occupant_entity_id (nullable)
	OccupantLabel    string     // seats.occupant_label
	RecordID         string     // seats.record_id
	HeldAt           *time.Time // seats.held_at (nullable)
}

// ID returns the seat address.
func (s Seat) ID() SeatID { return SeatID{TableID: s.TableID, SeatNumber: s.SeatNumber} }

// Free reports whether nobody holds the seat.
func (s Seat) Free() bool { return s.OccupantID == nil }

// HeldBy reports whether the given delegate holds the seat.
func (s Seat) HeldBy(delegateID string) bool {
	return s.OccupantID != nil && *s.OccupantID == delegateID
}

// SortSeatIDs orders seat ids by table then seat number in place.
func SortSeatIDs(ids []SeatID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].TableID != ids[j].TableID {
			return ids[i].TableID < ids[j].TableID
		}
		return ids[i].SeatNumber < ids[j].SeatNumber
	})
}

// DedupeSeatIDs returns the unique seat ids in table/seat order.
func DedupeSeatIDs(ids []SeatID) []SeatID {
	seen := make(map[SeatID]struct{}, len(ids))
	out := make([]SeatID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	SortSeatIDs(out)
	return out
}
