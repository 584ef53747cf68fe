package model

// Entity is an organisational group of delegates sharing a seat quota.
// Population is supplied by the registration system; SeatsHeld is the
// ledger counter of seats currently held by the entity's delegates.
type Entity struct {
	ID         string // entities.id
	Name       string // entities.name
	Population int    // entities.population
	SeatsHeld  int    // entities.seats_held
}

// Allowance is the quota state of an entity at one point in time.
type Allowance struct {
	EntityID  string `json:"entityId"`
	Quota     int    `json:"max"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}
