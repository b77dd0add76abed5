package tools

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrDuplicateTool is returned when a tool name is registered twice.
var ErrDuplicateTool = errors.New("duplicate tool name")

// Definition describes a callable function to the model.
type Definition struct {
	// Name is the unique tool identifier.
	Name string `json:"name"`
	// Description tells the model when to call the tool.
	Description string `json:"description"`
	// Parameters is the JSON Schema of the argument object.
	Parameters *jsonschema.Schema `json:"params_schema"`
}

// Catalog is the registry of tool definitions. Writes happen at startup; reads are safe concurrently.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]Definition
	order  []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]Definition)}
}

// Register adds def and fails if the name is empty or already taken.
func (c *Catalog) Register(def Definition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	if def.Parameters == nil {
		def.Parameters = &jsonschema.Schema{Type: "object"}
	}
	def.Name = name
	c.byName[name] = def
	c.order = append(c.order, name)
	return nil
}

// Lookup returns the definition registered under name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.byName[name]
	return def, ok
}

// All returns the definitions in registration order.
func (c *Catalog) All() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Definition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// DefaultCatalog registers the built-in finance functions.
func DefaultCatalog() *Catalog {
	catalog := NewCatalog()
	for _, def := range builtinDefinitions() {
		if err := catalog.Register(def); err != nil {
			panic(err)
		}
	}
	return catalog
}
