// Package devices holds the screen presets offered by the desktop viewer.
package devices

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/keithlinneman/playable-preview/internal/pathutil"
)

// DefaultKey is the preset used when none (or an unknown one) is requested.
const DefaultKey = "iphone-14"

type Preset struct {
	Key    string `toml:"-"`
	Name   string `toml:"name"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Catalog is an immutable, ordered set of presets.
type Catalog struct {
	presets    []Preset
	byKey      map[string]int
	defaultKey string
}

var builtin = []Preset{
	{Key: "iphone-14", Name: "iPhone 14", Width: 390, Height: 844},
	{Key: "iphone-se", Name: "iPhone SE", Width: 375, Height: 667},
	{Key: "ipad", Name: "iPad", Width: 768, Height: 1024},
	{Key: "ipad-mini", Name: "iPad Mini", Width: 744, Height: 1133},
	{Key: "galaxy-s23", Name: "Galaxy S23", Width: 360, Height: 780},
	{Key: "pixel-7", Name: "Pixel 7", Width: 412, Height: 915},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := newCatalog(builtin, DefaultKey)
	if err != nil {
		panic(err)
	}
	return c
}

// file is the on-disk format:
//
//	default = "pixel-7"
//
//	[devices.pixel-7]
//	name = "Pixel 7"
//	width = 412
//	height = 915
type file struct {
	Default string            `toml:"default"`
	Devices map[string]Preset `toml:"devices"`
}

// LoadFile reads a TOML preset file. The file replaces the built-in presets;
// keys are listed in lexical order.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read devices file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a preset file already in memory.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse devices file: %w", err)
	}
	if len(f.Devices) == 0 {
		return nil, fmt.Errorf("devices file defines no devices")
	}

	keys := make([]string, 0, len(f.Devices))
	for k := range f.Devices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	presets := make([]Preset, 0, len(keys))
	for _, k := range keys {
		p := f.Devices[k]
		p.Key = k
		presets = append(presets, p)
	}

	def := f.Default
	if def == "" {
		def = keys[0]
	}
	return newCatalog(presets, def)
}

func newCatalog(presets []Preset, defaultKey string) (*Catalog, error) {
	c := &Catalog{
		presets:    make([]Preset, 0, len(presets)),
		byKey:      make(map[string]int, len(presets)),
		defaultKey: defaultKey,
	}
	for _, p := range presets {
		if !pathutil.IsSafeIdentifier(p.Key) {
			return nil, fmt.Errorf("device %q: invalid key", p.Key)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("device %q: name is required", p.Key)
		}
		if p.Width < 1 || p.Width > 4096 || p.Height < 1 || p.Height > 4096 {
			return nil, fmt.Errorf("device %q: size %dx%d out of range (1..4096)", p.Key, p.Width, p.Height)
		}
		c.byKey[p.Key] = len(c.presets)
		c.presets = append(c.presets, p)
	}
	if _, ok := c.byKey[defaultKey]; !ok {
		return nil, fmt.Errorf("default device %q is not defined", defaultKey)
	}
	return c, nil
}

// Lookup returns the preset for key, falling back to the default preset.
// ok reports whether key itself was found.
func (c *Catalog) Lookup(key string) (p Preset, ok bool) {
	if i, found := c.byKey[key]; found {
		return c.presets[i], true
	}
	return c.presets[c.byKey[c.defaultKey]], false
}

// All returns the presets in display order.
func (c *Catalog) All() []Preset {
	out := make([]Preset, len(c.presets))
	copy(out, c.presets)
	return out
}

func (c *Catalog) DefaultKey() string { return c.defaultKey }
