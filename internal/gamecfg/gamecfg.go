// Package gamecfg is the per-game configuration registry: strip prefixes,
// allowed extensions, root-deploy folders, plugin extensions, and which
// deployment shape a game uses. Every other component is handed a Game
// record instead of branching on a game name.
package gamecfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Shape selects which deployer/restorer strategy a game uses.
type Shape string

const (
	// DataBackup moves vanilla files to a sibling _Core directory once,
	// then links mods and vanilla files back into the data directory.
	DataBackup Shape = "data_backup"
	// RootOverlay places mod files directly into a shared game root,
	// backing up each displaced original individually.
	RootOverlay Shape = "root_overlay"
	// PackageOnly means the game consumes LSPK packages directly and has
	// no filesystem deployment step at all.
	PackageOnly Shape = "package_only"
)

// Game is one entry in games.yaml.
type Game struct {
	Name                string            `yaml:"name"`
	Shape               Shape             `yaml:"shape"`
	DataDir             string            `yaml:"data_dir"`
	StripPrefixes       []string          `yaml:"strip_prefixes"`
	PerModStripPrefixes map[string]string `yaml:"per_mod_strip_prefixes"`
	AllowedExtensions   []string          `yaml:"allowed_extensions"`
	RootDeployFolders   []string          `yaml:"root_deploy_folders"`
	PluginExtensions    []string          `yaml:"plugin_extensions"`
}

// Registry is the parsed contents of games.yaml, keyed by Game.Name.
type Registry struct {
	games map[string]Game
	order []string
}

type document struct {
	Games []Game `yaml:"games"`
}

// Load reads and parses a games.yaml document from path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gamecfg: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Registry from raw YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("gamecfg: parsing games.yaml: %w", err)
	}
	reg := &Registry{games: make(map[string]Game, len(doc.Games))}
	for _, g := range doc.Games {
		if g.Name == "" {
			return nil, fmt.Errorf("gamecfg: game entry missing name")
		}
		if _, exists := reg.games[g.Name]; exists {
			return nil, fmt.Errorf("gamecfg: duplicate game name %q", g.Name)
		}
		reg.games[g.Name] = g
		reg.order = append(reg.order, g.Name)
	}
	return reg, nil
}

// Get returns the named game's configuration.
func (r *Registry) Get(name string) (Game, bool) {
	g, ok := r.games[name]
	return g, ok
}

// Names returns every registered game name in games.yaml document order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// StripPrefixFor returns the strip prefix to apply to a given mod, falling
// back to the game-wide StripPrefixes when the mod has no per-mod override.
func (g Game) StripPrefixFor(mod string) []string {
	if p, ok := g.PerModStripPrefixes[mod]; ok {
		return []string{p}
	}
	return g.StripPrefixes
}
