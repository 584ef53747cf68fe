package model

// Delegate is the authenticated requester as supplied by the identity
// provider.  The engine never stores delegates; it only copies the id,
// entity and label onto the ledger rows it writes.
type Delegate struct {
	ID          string
	EntityID    string
	DisplayName string
}

// Label returns the text shown for the delegate on the seating chart.
func (d Delegate) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.ID
}
