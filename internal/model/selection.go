package model

import (
	"errors"
	"strings"
	"time"
)

// Selections is the fixed-arity session choice of a delegate: one pool per
// category.  Empty fields are allowed in drafts but not on submit.
type Selections struct {
	Track1 string `json:"track1"`
	Track2 string `json:"track2"`
	Panel  string `json:"panel"`
}

// ErrIncompleteSelection is returned when a category has no pool.
var ErrIncompleteSelection = errors.New("a pool is required for every category")

// Normalize trims whitespace from every field.
func (s Selections) Normalize() Selections {
	return Selections{
		Track1: strings.TrimSpace(s.Track1),
		Track2: strings.TrimSpace(s.Track2),
		Panel:  strings.TrimSpace(s.Panel),
	}
}

// Get returns the pool chosen for a category.
func (s Selections) Get(c Category) string {
	switch c {
	case CategoryTrack1:
		return s.Track1
	case CategoryTrack2:
		return s.Track2
	case CategoryPanel:
		return s.Panel
	}
	return ""
}

// Complete checks that every category has a pool.
func (s Selections) Complete() error {
	for _, c := range Categories {
		if s.Get(c) == "" {
			return ErrIncompleteSelection
		}
	}
	return nil
}

// DelegateSelection is the per-delegate session record.  Once Locked is
// true the record is frozen.
type DelegateSelection struct {
	DelegateID  string     `json:"delegateId"`
	EntityID    string     `json:"entityId,omitempty"`
	Selections  Selections `json:"selections"`
	Locked      bool       `json:"locked"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
