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

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileSource loads the configuration from a YAML file on every Load, so a
// reload picks up edits.
type FileSource struct {
	path string
}

// NewFileSource creates a source for the YAML file at path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the file path
func (s *FileSource) Path() string { return s.path }

// Load reads, expands and validates the configuration file
func (s *FileSource) Load(ctx context.Context) (*AppConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", s.path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration after environment expansion and
// validates it.
func Parse(data []byte) (*AppConfig, error) {
	// Expand environment variables in the content
	expanded := expandEnvVars(string(data))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := ValidateAppConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports both ${VAR_NAME} and $VAR_NAME syntax, and ${VAR_NAME:-default}.
// Undefined variables without a default expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		// Handle default values: ${VAR_NAME:-default}
		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}

// StaticSource serves a configuration built in code. Embedded hosts use it
// in lib mode to hand over records that carry their blueprints directly.
type StaticSource struct {
	cfg *AppConfig
}

// NewStaticSource wraps cfg
func NewStaticSource(cfg *AppConfig) *StaticSource {
	return &StaticSource{cfg: cfg}
}

// Load validates and returns a copy of the wrapped configuration
func (s *StaticSource) Load(ctx context.Context) (*AppConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg == nil {
		return nil, ErrConfigNotFound
	}
	if err := ValidateAppConfig(s.cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cp := *s.cfg
	cp.Records = append([]Record(nil), s.cfg.Records...)
	cp.ApplyDefaults()
	return &cp, nil
}

// GenerateExampleConfigFile returns an annotated example configuration
func GenerateExampleConfigFile() string {
	return `# storebind configuration
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default} syntax

version: "1.0"

# When on, every record shares one connection named by global_connection_name
use_global_uri: false
global_uri: ${DATABASE_URL}
global_connection_name: global

# Directory scanned for *.module.yaml blueprint definitions
modules_path: ${STOREBIND_MODULES:-./models}

connection:
  connect_timeout_ms: 10000
  max_retries: 3

records:
  - name: main
    uri: mongodb://localhost:27017/app
    entity: User
    blueprint: user
    schema:
      fields:
        email: string

  - name: cache
    uri: redis://localhost:6379/0
    entity: Session
    blueprint: session
`
}
