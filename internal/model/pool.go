package model

import "fmt"

// Category is one of the session categories a delegate must choose in.
type Category string

const (
	CategoryTrack1 Category = "track1"
	CategoryTrack2 Category = "track2"
	CategoryPanel  Category = "panel"
)

// Categories lists every category a complete selection must cover.
var Categories = []Category{CategoryTrack1, CategoryTrack2, CategoryPanel}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryTrack1, CategoryTrack2, CategoryPanel:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown session category %q", s)
}

// Pool is a capacity-limited session option (a track option or a panel).
//
// Fields:
//  ID        – stable pool identifier, e.g. "track1-sustainability".
//  Category  – category the pool belongs to.
//  Label     – display label.
//  Capacity  – maximum number of delegates.
//  Occupancy – delegates currently admitted.
type Pool struct {
	ID        string   // session_pools.id
	Category  Category // session_pools.category
	Label     string   // session_pools.label
	Capacity  int      // session_pools.capacity
	Occupancy int      // session_pools.occupancy
}

// Full reports whether the pool has reached capacity.
func (p Pool) Full() bool { return p.Occupancy >= p.Capacity }

// Remaining is the number of free slots left in the pool.
func (p Pool) Remaining() int {
	if p.Occupancy >= p.Capacity {
		return 0
	}
	return p.Capacity - p.Occupancy
}
