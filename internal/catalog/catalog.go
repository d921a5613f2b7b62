// Package catalog holds the studio's service and staff catalog. The catalog is
// loaded once at startup and is immutable for the process lifetime.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Service describes a bookable procedure.
type Service struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int    `json:"price"` // minor currency units
	DurationMin int    `json:"duration_min"`
	Description string `json:"description"`
}

// Staff describes a staff member clients can book with.
type Staff struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Catalog is the full service/staff catalog keyed by category.
type Catalog struct {
	// DefaultCategory is the category offered when booking starts.
	DefaultCategory string                        `json:"default_category"`
	Categories      map[string]map[string]Service `json:"categories"`
	StaffByID       map[string]Staff              `json:"staff"`
}

// Default returns the built-in catalog used when no catalog file is configured.
func Default() *Catalog {
	return &Catalog{
		DefaultCategory: "face",
		Categories: map[string]map[string]Service{
			"face": {
				"cleansing": {
					ID:          "cleansing",
					Name:        "Cleansing",
					Price:       1500,
					DurationMin: 60,
					Description: "Deep facial cleansing with Montibello care line.",
				},
				"peeling": {
					ID:          "peeling",
					Name:        "Peeling",
					Price:       2000,
					DurationMin: 45,
					Description: "Gentle enzyme peeling for all skin types.",
				},
				"massage": {
					ID:          "massage",
					Name:        "Facial massage",
					Price:       1200,
					DurationMin: 30,
					Description: "Sculpting facial massage course session.",
				},
				"care": {
					ID:          "care",
					Name:        "Express care",
					Price:       1800,
					DurationMin: 60,
					Description: "Hydration and nutrition express program.",
				},
			},
		},
		StaffByID: map[string]Staff{
			"anna":  {ID: "anna", Name: "Anna"},
			"elena": {ID: "elena", Name: "Elena"},
		},
	}
}

// LoadFile reads a catalog from a JSON file. Used to override the built-in
// catalog via CATALOG_FILE.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("no categories defined")
	}
	if _, ok := c.Categories[c.DefaultCategory]; !ok {
		return fmt.Errorf("default category %q not present", c.DefaultCategory)
	}
	if len(c.StaffByID) == 0 {
		return fmt.Errorf("no staff defined")
	}
	for cat, services := range c.Categories {
		for id, svc := range services {
			if svc.DurationMin <= 0 {
				return fmt.Errorf("service %s/%s has non-positive duration", cat, id)
			}
		}
	}
	return nil
}

// Service looks up a service by category and id.
func (c *Catalog) Service(category, id string) (Service, bool) {
	services, ok := c.Categories[category]
	if !ok {
		return Service{}, false
	}
	svc, ok := services[id]
	return svc, ok
}

// ServicesInCategory returns the category's services sorted by name for
// stable keyboard rendering.
func (c *Catalog) ServicesInCategory(category string) []Service {
	services := c.Categories[category]
	out := make([]Service, 0, len(services))
	for _, svc := range services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StaffMember looks up a staff member by id.
func (c *Catalog) StaffMember(id string) (Staff, bool) {
	st, ok := c.StaffByID[id]
	return st, ok
}

// StaffList returns all staff sorted by name.
func (c *Catalog) StaffList() []Staff {
	out := make([]Staff, 0, len(c.StaffByID))
	for _, st := range c.StaffByID {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
