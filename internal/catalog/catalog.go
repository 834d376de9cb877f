// Package catalog holds the static creature catalog: the playable
// creatures, their moves, their prices, and their battle images.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mikeshasaco/pokemonbot/internal/model"
)

// creatures is the full playable roster. Stats are fixed; the list
// only changes with a release.
var creatures = []model.Creature{
	{
		Name:       "Blizzard",
		BaseHealth: 500,
		Attack1:    model.Move{Name: "Double Blizzard", Damage: 120},
		Attack2:    model.Move{Name: "Blue Fire", Damage: 250},
	},
	{
		Name:       "Curselord",
		BaseHealth: 500,
		Attack1:    model.Move{Name: "Shadow Saber", Damage: 80},
		Attack2:    model.Move{Name: "Brutal Claw", Damage: 230},
	},
	{
		Name:       "Gar",
		BaseHealth: 500,
		Attack1:    model.Move{Name: "Iron Slash", Damage: 55},
		Attack2:    model.Move{Name: "Dark Slash", Damage: 100},
	},
	{
		Name:       "Neu",
		BaseHealth: 500,
		Attack1:    model.Move{Name: "Nova Blast", Damage: 240},
		Attack2:    model.Move{Name: "Pyshic", Damage: 150},
	},
	{
		Name:       "Turquoise",
		BaseHealth: 500,
		Attack1:    model.Move{Name: "Petal Swirl", Damage: 110},
		Attack2:    model.Move{Name: "Petal Bullet", Damage: 220},
	},
}

// prices maps creature name to its price in ETH.
var prices = map[string]float64{
	"Blizzard":  0.3,
	"Curselord": 0.4,
	"Gar":       0.1,
	"Neu":       0.2,
	"Turquoise": 0.1,
}

// All returns every creature in the catalog, sorted by name.
// The returned slice is a copy.
func All() []model.Creature {
	out := make([]model.Creature, len(creatures))
	copy(out, creatures)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a creature by name, case-insensitively.
func Lookup(name string) (model.Creature, bool) {
	for _, c := range creatures {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return model.Creature{}, false
}

// Prices returns the price table, keyed by proper-cased creature name.
func Prices() map[string]float64 {
	out := make(map[string]float64, len(prices))
	for name, price := range prices {
		out[name] = price
	}
	return out
}

// Price returns the price for a creature, resolving the name
// case-insensitively to its proper-cased catalog form.
func Price(name string) (string, float64, bool) {
	for proper, price := range prices {
		if strings.EqualFold(proper, name) {
			return proper, price, true
		}
	}
	return "", 0, false
}

// Names returns all catalog names sorted alphabetically.
func Names() []string {
	names := make([]string, 0, len(creatures))
	for _, c := range creatures {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Assets resolves creature battle images under a base directory.
type Assets struct {
	dir string
}

// NewAssets creates an asset lookup rooted at dir.
func NewAssets(dir string) *Assets {
	return &Assets{dir: dir}
}

// ImagePath returns the path to a creature's image, or an error if
// the file is not present on disk.
func (a *Assets) ImagePath(creatureName string) (string, error) {
	path := filepath.Join(a.dir, strings.ToLower(creatureName)+".png")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("image for %s not found: %w", creatureName, err)
	}
	return path, nil
}
