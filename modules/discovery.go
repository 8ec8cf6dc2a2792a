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
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"storebind/connectors/base"
	"storebind/shared/fsutil"
	"storebind/shared/logger"
)

// DefinitionSuffix is the file naming convention for module definitions
const DefinitionSuffix = ".module.yaml"

// Definition is the on-disk form of a blueprint
type Definition struct {
	Name        string                 `yaml:"name"`
	Blueprint   string                 `yaml:"blueprint"`
	Description string                 `yaml:"description"`
	Options     map[string]interface{} `yaml:"options"`
}

// LoadDefinition reads and validates one definition file
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse module definition: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if def.Blueprint == "" {
		return nil, fmt.Errorf("%w: blueprint is required", ErrInvalidDefinition)
	}
	return &def, nil
}

// Discover scans root recursively for module definition files and builds a
// catalog. Files are processed in lexical path order. A file that cannot be
// loaded or names an unknown constructor is logged and skipped. A duplicate
// name replaces the earlier entry and a warning names both files.
//
// The returned error is non-nil only when root itself cannot be scanned.
func Discover(ctx context.Context, root string, table *ConstructorTable, log *logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.New("discovery")
	}

	files, err := fsutil.FindFilesBySuffix(root, DefinitionSuffix)
	if err != nil {
		return NewCatalog(), fmt.Errorf("failed to scan module path %s: %w", root, err)
	}

	catalog := NewCatalog()
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return catalog, err
		}

		def, err := LoadDefinition(path)
		if err != nil {
			log.ErrorWithErr("Skipping module definition", err, map[string]interface{}{"file": path})
			continue
		}

		ctor, ok := table.Lookup(def.Blueprint)
		if !ok {
			log.ErrorWithErr("Skipping module definition", fmt.Errorf("%w: %s", ErrUnknownConstructor, def.Blueprint),
				map[string]interface{}{"file": path, "name": def.Name})
			continue
		}

		bp := &Blueprint{
			Name:        def.Name,
			Kind:        def.Blueprint,
			Description: def.Description,
			Source:      path,
			Options:     base.Options(def.Options),
			New:         ctor,
		}
		if prev := catalog.add(bp); prev != nil {
			log.Warn("Duplicate blueprint name, later definition wins", map[string]interface{}{
				"name":        def.Name,
				"replaced":    prev.Source,
				"replacement": path,
			})
		}
		log.Debug("Discovered blueprint", map[string]interface{}{
			"name":      def.Name,
			"blueprint": def.Blueprint,
			"file":      path,
		})
	}

	log.Info("Module discovery complete", map[string]interface{}{
		"root":       root,
		"files":      len(files),
		"blueprints": catalog.Len(),
	})
	return catalog, nil
}
