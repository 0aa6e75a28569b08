package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"voxelbarter.ai/internal/sim/ident"
)

var (
	ErrUnknown   = errors.New("no creatable catalog match")
	ErrAmbiguous = errors.New("ambiguous catalog match")
)

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog
}

type BlockCatalog struct {
	Palette    []string
	Defs       map[string]BlockDef
	DefsDigest string
}

type BlockDef struct {
	ID        string `json:"id"`
	Solid     bool   `json:"solid"`
	DropsItem string `json:"drops_item,omitempty"`
}

type ItemCatalog struct {
	Palette    []string
	Defs       map[string]ItemDef
	DefsDigest string

	folded map[string]string // folded id -> id
}

type ItemDef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"` // "BLOCK","TOOL","MATERIAL","FOOD"
	Cost int    `json:"cost"`
	// Virtual items are priced but cannot be created in an inventory.
	Virtual bool `json:"virtual,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := c.validateDrops(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalogs) validateDrops() error {
	for _, id := range c.Blocks.Palette {
		b := c.Blocks.Defs[id]
		if b.DropsItem == "" {
			continue
		}
		if _, ok := c.Items.Defs[b.DropsItem]; !ok {
			return fmt.Errorf("blocks.json: %s drops unknown item %s", b.ID, b.DropsItem)
		}
	}
	return nil
}

// New builds catalogs from in-memory definitions, validating them the same
// way Load does.
func New(items []ItemDef, blocks []BlockDef) (*Catalogs, error) {
	ib, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	var c Catalogs
	if err := parseItems(ib, &c.Items); err != nil {
		return nil, err
	}
	bb, err := json.Marshal(blocks)
	if err != nil {
		return nil, err
	}
	if err := parseBlocks(bb, &c.Blocks); err != nil {
		return nil, err
	}
	if err := c.validateDrops(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Digest identifies the loaded catalog contents.
func (c *Catalogs) Digest() string {
	return sha256Hex([]byte(c.Items.DefsDigest + "\n" + c.Blocks.DefsDigest))
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseItems(raw, out)
}

func parseItems(raw []byte, out *ItemCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	out.folded = map[string]string{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if d.Cost < 0 {
			return fmt.Errorf("items.json: %s: negative cost", d.ID)
		}
		f := ident.Fold(d.ID)
		if prev, dup := out.folded[f]; dup {
			return fmt.Errorf("items.json: %s collides with %s", d.ID, prev)
		}
		out.Defs[d.ID] = d
		out.folded[f] = d.ID
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return nil
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		// Blocks are optional; without them there is no block fallback.
		if os.IsNotExist(err) {
			out.DefsDigest = sha256Hex(nil)
			out.Defs = map[string]BlockDef{}
			return nil
		}
		return err
	}
	return parseBlocks(raw, out)
}

func parseBlocks(raw []byte, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return nil
}
