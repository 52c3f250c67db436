// Package catalog loads the restaurant and drop-off location data consumed by
// the batching registry and the delivery provider adapter. Locations are
// externalized to a JSON file so that adding a restaurant or moving the
// drop-off point is a deployment change, not a code change.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Location is a physical address with the coordinates and contact phone the
// delivery provider requires.
type Location struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	City    string  `json:"city"`
	State   string  `json:"state"`
	Zip     string  `json:"zip"`
	Phone   string  `json:"phone"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Restaurant is one pickup option. Aliases extend matching in the keyword
// extractor ("chipotle", "chipotles"); MaxPerWindow and FeeCents override the
// configured defaults when non-zero.
type Restaurant struct {
	Name         string   `json:"name"`
	Aliases      []string `json:"aliases,omitempty"`
	Pickup       Location `json:"pickup"`
	MaxPerWindow int      `json:"max_per_window,omitempty"`
	FeeCents     int64    `json:"fee_cents,omitempty"`
}

// Catalog holds every restaurant that can be ordered from plus the single
// campus drop-off location all batches are delivered to. The catalog is
// immutable after Load and safe for concurrent reads.
type Catalog struct {
	Restaurants []Restaurant `json:"restaurants"`
	Dropoff     Location     `json:"dropoff"`

	byKey map[string]*Restaurant
}

// Load reads and validates a catalog JSON file.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates catalog JSON.
func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(c.Restaurants) == 0 {
		return nil, fmt.Errorf("catalog has no restaurants")
	}
	if err := validateLocation("dropoff", c.Dropoff); err != nil {
		return nil, err
	}

	c.byKey = make(map[string]*Restaurant, len(c.Restaurants))
	for i := range c.Restaurants {
		r := &c.Restaurants[i]
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("catalog restaurant %d has no name", i)
		}
		if err := validateLocation(r.Name, r.Pickup); err != nil {
			return nil, err
		}
		key := normalize(r.Name)
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate restaurant %q", r.Name)
		}
		c.byKey[key] = r
		for _, a := range r.Aliases {
			ak := normalize(a)
			if ak == "" || ak == key {
				continue
			}
			if _, dup := c.byKey[ak]; dup {
				return nil, fmt.Errorf("duplicate restaurant alias %q", a)
			}
			c.byKey[ak] = r
		}
	}
	return &c, nil
}

// Lookup resolves a restaurant by canonical name or alias (case and
// punctuation insensitive).
func (c *Catalog) Lookup(name string) (Restaurant, bool) {
	if r, ok := c.byKey[normalize(name)]; ok {
		return *r, true
	}
	return Restaurant{}, false
}

// Names returns the canonical restaurant names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.Restaurants))
	for i, r := range c.Restaurants {
		out[i] = r.Name
	}
	return out
}

func validateLocation(owner string, l Location) error {
	if strings.TrimSpace(l.Address) == "" {
		return fmt.Errorf("%s: location address is required", owner)
	}
	if l.Lat == 0 && l.Lng == 0 {
		return fmt.Errorf("%s: location coordinates are required", owner)
	}
	return nil
}

// normalize lowercases and strips everything but letters and digits so that
// "Chick-fil-A" and "chick fil a" resolve to the same key.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
