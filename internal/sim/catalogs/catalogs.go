package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

//go:embed blocks.json
var defaultBlocks []byte

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID          string `json:"id"`
	Solid       bool   `json:"solid"`
	Liquid      bool   `json:"liquid,omitempty"`
	RopeTieable bool   `json:"rope_tieable,omitempty"`
}

// Load reads blocks.json from configDir, falling back to the built-in catalog when the
// directory has none.
func Load(configDir string) (*BlockCatalog, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, "blocks.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return parseBlocks(raw)
}

// Default returns the built-in catalog.
func Default() *BlockCatalog {
	c, err := parseBlocks(defaultBlocks)
	if err != nil {
		panic(err)
	}
	return c
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func parseBlocks(raw []byte) (*BlockCatalog, error) {
	out := &BlockCatalog{DefsDigest: sha256Hex(raw)}

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("blocks.json: empty id")
		}
		if d.Solid && d.Liquid {
			return nil, fmt.Errorf("blocks.json: %s is both solid and liquid", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return nil, fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return out, nil
}

// ID returns the palette id of a block, or AIR when unknown.
func (c *BlockCatalog) ID(name string) uint16 {
	return c.Index[name]
}

// Def returns the definition of a palette id.
func (c *BlockCatalog) Def(id uint16) BlockDef {
	if int(id) >= len(c.Palette) {
		return BlockDef{}
	}
	return c.Defs[c.Palette[id]]
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
