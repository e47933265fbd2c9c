// Package pops holds the read-only catalog of points of presence.
package pops

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Pop is one point of presence.
type Pop struct {
	Code     string `yaml:"code" json:"code"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// File is the on-disk catalog layout.
type File struct {
	Default string `yaml:"default" json:"default"`
	Pops    []Pop  `yaml:"pops" json:"pops"`
}

// Catalog is an immutable, code-sorted set of pops.
type Catalog struct {
	pops       []Pop
	byCode     map[string]int
	defaultPop string
}

// New validates the file and builds a catalog. Codes are lower-cased.
// When no default is named the first code in sorted order is used.
func New(file File) (*Catalog, error) {
	c := &Catalog{byCode: make(map[string]int, len(file.Pops))}
	for i, p := range file.Pops {
		p.Code = strings.ToLower(strings.TrimSpace(p.Code))
		p.Name = strings.TrimSpace(p.Name)
		p.Endpoint = strings.TrimSpace(p.Endpoint)
		if p.Code == "" {
			return nil, fmt.Errorf("pop %d: code is required", i)
		}
		if p.Endpoint == "" {
			return nil, fmt.Errorf("pop %q: endpoint is required", p.Code)
		}
		if _, dup := c.byCode[p.Code]; dup {
			return nil, fmt.Errorf("pop %q: duplicate code", p.Code)
		}
		c.byCode[p.Code] = -1
		c.pops = append(c.pops, p)
	}
	sort.Slice(c.pops, func(i, j int) bool { return c.pops[i].Code < c.pops[j].Code })
	for i, p := range c.pops {
		c.byCode[p.Code] = i
	}

	c.defaultPop = strings.ToLower(strings.TrimSpace(file.Default))
	if c.defaultPop != "" {
		if _, ok := c.byCode[c.defaultPop]; !ok {
			return nil, fmt.Errorf("default pop %q is not in the catalog", c.defaultPop)
		}
	} else if len(c.pops) > 0 {
		c.defaultPop = c.pops[0].Code
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog, ".yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded pop catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. The extension selects YAML (.yaml, .yml) or
// JSON with comments (.json, .jsonc).
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pop catalog %s: %w", path, err)
	}
	c, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes catalog bytes in the format named by ext.
func Parse(data []byte, ext string) (*Catalog, error) {
	var file File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse pop catalog: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
			return nil, fmt.Errorf("parse pop catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported pop catalog format %q", ext)
	}
	return New(file)
}

// List returns a copy of every pop, sorted by code.
func (c *Catalog) List() []Pop {
	if c == nil {
		return nil
	}
	return append([]Pop(nil), c.pops...)
}

// Default returns the fallback region for new sessions.
func (c *Catalog) Default() string {
	if c == nil {
		return ""
	}
	return c.defaultPop
}

// Has reports whether code names a known pop.
func (c *Catalog) Has(code string) bool {
	if c == nil {
		return false
	}
	_, ok := c.byCode[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

// Len returns the number of pops.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.pops)
}

// Resolve returns code when it is known, otherwise the default.
func (c *Catalog) Resolve(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if c.Has(code) {
		return code
	}
	return c.Default()
}
