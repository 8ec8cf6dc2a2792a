// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package modules

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"storebind/connectors/base"
)

// Schema is an opaque entity shape descriptor passed through from
// configuration to the module constructor unchanged.
type Schema map[string]interface{}

// Fields returns the "fields" section of the schema as name -> type, if present
func (s Schema) Fields() map[string]string {
	raw, ok := s["fields"].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Module is a live object binding one blueprint to one connection handle
// and one entity.
type Module interface {
	Blueprint() string
	Entity() string
	Connection() *base.Handle
	Schema() Schema
}

// Constructor builds a module. opts are the blueprint options from its
// definition file (nil for blueprints supplied in code).
type Constructor func(h *base.Handle, entity string, schema Schema, opts base.Options) (Module, error)

var (
	// ErrUnknownConstructor is returned when a definition names a
	// constructor that is not in the table.
	ErrUnknownConstructor = errors.New("unknown module constructor")
	// ErrInvalidDefinition is returned for definition files missing required fields.
	ErrInvalidDefinition = errors.New("invalid module definition")
)

// Blueprint is a named, instantiable template for a module
type Blueprint struct {
	Name        string       // declared name; lookup is case-insensitive
	Kind        string       // constructor identifier in the ConstructorTable
	Description string       // free text from the definition file
	Source      string       // definition file path, empty for code-supplied blueprints
	Options     base.Options // passed to the constructor
	New         Constructor
}

// NewBlueprint creates a blueprint directly from a constructor, for
// embedded hosts that skip discovery.
func NewBlueprint(name string, ctor Constructor) *Blueprint {
	return &Blueprint{Name: name, Kind: name, New: ctor}
}

// Instantiate builds a module bound to h for entity
func (b *Blueprint) Instantiate(h *base.Handle, entity string, schema Schema) (Module, error) {
	return b.InstantiateWith(h, entity, schema, nil)
}

// InstantiateWith is Instantiate with per-record options layered over the
// blueprint's own options.
func (b *Blueprint) InstantiateWith(h *base.Handle, entity string, schema Schema, opts base.Options) (Module, error) {
	if b.New == nil {
		return nil, fmt.Errorf("blueprint %q has no constructor", b.Name)
	}
	m, err := b.New(h, entity, schema, b.Options.Merge(opts))
	if err != nil {
		return nil, fmt.Errorf("blueprint %q: %w", b.Name, err)
	}
	return m, nil
}

// ConstructorTable maps compile-time constructor identifiers to constructors.
// Identifiers are case-insensitive.
type ConstructorTable struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewConstructorTable creates an empty table
func NewConstructorTable() *ConstructorTable {
	return &ConstructorTable{ctors: make(map[string]Constructor)}
}

// Register adds a constructor.
// Returns an error if the identifier is already registered.
func (t *ConstructorTable) Register(id string, ctor Constructor) error {
	key := strings.ToLower(id)
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.ctors[key]; exists {
		return fmt.Errorf("constructor '%s' already registered", id)
	}
	t.ctors[key] = ctor
	return nil
}

// MustRegister is Register that panics on a duplicate, for init-time wiring
func (t *ConstructorTable) MustRegister(id string, ctor Constructor) {
	if err := t.Register(id, ctor); err != nil {
		panic(err)
	}
}

// Lookup returns the constructor for id
func (t *ConstructorTable) Lookup(id string) (Constructor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.ctors[strings.ToLower(id)]
	return c, ok
}

// Len returns the number of registered constructors
func (t *ConstructorTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ctors)
}

// Catalog is the result of one discovery pass: blueprint name -> blueprint.
// It is rebuilt on every pass and never patched.
type Catalog struct {
	entries map[string]*Blueprint
	order   []string
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]*Blueprint)}
}

// add stores b under its lower-cased name and returns any blueprint it replaced
func (c *Catalog) add(b *Blueprint) *Blueprint {
	key := strings.ToLower(b.Name)
	prev, exists := c.entries[key]
	if !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = b
	return prev
}

// Lookup returns the blueprint registered under name, ignoring case
func (c *Catalog) Lookup(name string) (*Blueprint, bool) {
	if c == nil {
		return nil, false
	}
	b, ok := c.entries[strings.ToLower(name)]
	return b, ok
}

// Names returns the lower-cased blueprint names in first-seen order
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of blueprints
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
