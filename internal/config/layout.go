package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/conference-reservation/internal/model"
)

// DefaultPools is the session programme used when LAYOUT_POOLS is unset.
const DefaultPools = "track1-sustainability:track1:80,track1-innovation:track1:80," +
	"track2-policy:track2:80,track2-finance:track2:80," +
	"panel-leadership:panel:120,panel-future:panel:120"

type layoutEnv struct {
	Tables        int      `env:"LAYOUT_TABLES" envDefault:"30"`
	SeatsPerTable int      `env:"LAYOUT_SEATS_PER_TABLE" envDefault:"10"`
	Pools         []string `env:"LAYOUT_POOLS" envSeparator:","`
	Entities      []string `env:"LAYOUT_ENTITIES" envSeparator:","`
}

// LoadLayout reads the fixed resource arena and the optional dev entity
// seed list.
//
//	LAYOUT_POOLS    – comma list of id:category:capacity
//	LAYOUT_ENTITIES – comma list of id:population
func LoadLayout() (model.Layout, []model.Entity, error) {
	var raw layoutEnv
	if err := ParseEnv(&raw); err != nil {
		return model.Layout{}, nil, err
	}
	if raw.Tables < 1 || raw.SeatsPerTable < 1 {
		return model.Layout{}, nil, fmt.Errorf("layout needs at least one table and one seat, got %d x %d",
			raw.Tables, raw.SeatsPerTable)
	}
	var layout model.Layout
	for i := 1; i <= raw.Tables; i++ {
		layout.Tables = append(layout.Tables, model.Table{
			ID:        uint32(i),
			Label:     fmt.Sprintf("Table %d", i),
			SeatCount: uint32(raw.SeatsPerTable),
		})
	}

	poolSpecs := raw.Pools
	if len(poolSpecs) == 0 {
		poolSpecs = strings.Split(DefaultPools, ",")
	}
	pools, err := ParsePools(poolSpecs)
	if err != nil {
		return model.Layout{}, nil, err
	}
	layout.Pools = pools

	entities, err := ParseEntities(raw.Entities)
	if err != nil {
		return model.Layout{}, nil, err
	}
	return layout, entities, nil
}

// ParsePools parses id:category:capacity triples.  Every category must be
// offered by at least one pool and ids must be unique.
func ParsePools(specs []string) ([]model.Pool, error) {
	seen := map[string]bool{}
	covered := map[model.Category]bool{}
	var out []model.Pool
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		parts := strings.Split(spec, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("pool %q: want id:category:capacity", spec)
		}
		id := strings.TrimSpace(parts[0])
		cat, err := model.ParseCategory(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("pool %q: %w", spec, err)
		}
		capacity, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || capacity < 0 {
			return nil, fmt.Errorf("pool %q: invalid capacity", spec)
		}
		if id == "" || seen[id] {
			return nil, fmt.Errorf("pool %q: empty or duplicate id", spec)
		}
		seen[id] = true
		covered[cat] = true
		out = append(out, model.Pool{ID: id, Category: cat, Label: id, Capacity: capacity})
	}
	for _, c := range model.Categories {
		if !covered[c] {
			return nil, fmt.Errorf("no session pool configured for category %s", c)
		}
	}
	return out, nil
}

// ParseEntities parses id:population pairs.
func ParseEntities(specs []string) ([]model.Entity, error) {
	var out []model.Entity
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		id, pop, ok := strings.Cut(spec, ":")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("entity %q: want id:population", spec)
		}
		n, err := strconv.Atoi(strings.TrimSpace(pop))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("entity %q: invalid population", spec)
		}
		out = append(out, model.Entity{ID: id, Name: id, Population: n})
	}
	return out, nil
}
