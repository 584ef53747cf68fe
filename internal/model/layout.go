package model

// Layout is the fixed resource arena created at startup: the gala tables
// with their seat counts and the session pools with their capacities.
type Layout struct {
	Tables []Table
	Pools  []Pool
}

// SeatIDs expands the layout's tables into every seat address.
func (l Layout) SeatIDs() []SeatID {
	var out []SeatID
	for _, t := range l.Tables {
		for n := uint32(1); n <= t.SeatCount; n++ {
			out = append(out, SeatID{TableID: t.ID, SeatNumber: n})
		}
	}
	return out
}
