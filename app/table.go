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

package app

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"storebind/modules"
)

// ModuleInfo describes one bound module
type ModuleInfo struct {
	Name       string `json:"name"`
	Property   string `json:"property"`
	Entity     string `json:"entity"`
	Blueprint  string `json:"blueprint"`
	Connection string `json:"connection"`
}

// moduleTable is the insertion-ordered registration map. A name registered
// twice keeps its position and takes the newer module.
type moduleTable struct {
	mu      sync.RWMutex
	entries map[string]modules.Module
	order   []string
	scoped  map[string]string // scoped name -> property name
}

func newModuleTable() *moduleTable {
	return &moduleTable{
		entries: make(map[string]modules.Module),
		scoped:  make(map[string]string),
	}
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("registration name must not be empty")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("registration name %q must not contain whitespace", name)
	}
	return nil
}

// Register stores m under both names, or neither when a name is invalid
func (t *moduleTable) Register(scoped, property string, m modules.Module) error {
	if m == nil {
		return fmt.Errorf("module for %q is nil", scoped)
	}
	if err := validateName(scoped); err != nil {
		return err
	}
	if err := validateName(property); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.put(scoped, m)
	t.put(property, m)
	t.scoped[scoped] = property
	return nil
}

func (t *moduleTable) put(name string, m modules.Module) {
	if _, exists := t.entries[name]; !exists {
		t.order = append(t.order, name)
	}
	t.entries[name] = m
}

func (t *moduleTable) get(name string) (modules.Module, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.entries[name]
	return m, ok
}

func (t *moduleTable) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *moduleTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// infos lists the scoped registrations sorted by name
func (t *moduleTable) infos() []ModuleInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ModuleInfo, 0, len(t.scoped))
	for scoped, property := range t.scoped {
		m := t.entries[scoped]
		info := ModuleInfo{
			Name:      scoped,
			Property:  property,
			Entity:    m.Entity(),
			Blueprint: m.Blueprint(),
		}
		if h := m.Connection(); h != nil {
			info.Connection = h.Name()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
