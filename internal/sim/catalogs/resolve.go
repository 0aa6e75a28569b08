package catalogs

import (
	"fmt"

	"voxelbarter.ai/internal/sim/ident"
)

// Cost returns the trade valuation of an item id. Ids are matched exactly
// first, then case-insensitively.
func (c *Catalogs) Cost(id string) (int, bool) {
	if d, ok := c.Items.Defs[id]; ok {
		return d.Cost, true
	}
	if canon, ok := c.Items.folded[ident.Fold(id)]; ok {
		return c.Items.Defs[canon].Cost, true
	}
	return 0, false
}

// matches reports whether name selects id, either as the full namespaced id
// or as its unqualified part.
func matches(id, name string) bool {
	return ident.Equal(id, name) || ident.Equal(ident.Local(id), name)
}

// ResolveCreatable maps a display or catalog name to the single item id that
// can be created in an inventory. When no item matches, blocks whose id
// matches resolve to the item they drop.
func (c *Catalogs) ResolveCreatable(name string) (string, error) {
	var found []string
	for _, id := range c.Items.Palette {
		if c.Items.Defs[id].Virtual {
			continue
		}
		if matches(id, name) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
	default:
		return "", fmt.Errorf("%w: %q -> %v", ErrAmbiguous, name, found)
	}

	drops := map[string]bool{}
	for _, id := range c.Blocks.Palette {
		b := c.Blocks.Defs[id]
		if b.DropsItem == "" || !matches(id, name) {
			continue
		}
		if d, ok := c.Items.Defs[b.DropsItem]; !ok || d.Virtual {
			continue
		}
		drops[b.DropsItem] = true
	}
	switch len(drops) {
	case 1:
		for id := range drops {
			return id, nil
		}
	case 0:
		return "", fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return "", fmt.Errorf("%w: %q matches %d blocks", ErrAmbiguous, name, len(drops))
}
