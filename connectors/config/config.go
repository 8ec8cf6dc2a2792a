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

	"storebind/connectors/base"
	"storebind/modules"
)

// DefaultGlobalConnectionName names the shared connection used when
// use_global_uri is on.
const DefaultGlobalConnectionName = "global"

// ErrConfigNotFound is returned when the configuration file does not exist
var ErrConfigNotFound = errors.New("configuration not found")

// AppConfig is the root of the application configuration
type AppConfig struct {
	Version              string           `yaml:"version"`
	UseGlobalURI         bool             `yaml:"use_global_uri"`
	GlobalURI            string           `yaml:"global_uri,omitempty"`
	GlobalConnectionName string           `yaml:"global_connection_name,omitempty"`
	LibMode              bool             `yaml:"lib_mode"`
	ModulesPath          string           `yaml:"modules_path,omitempty"`
	Connection           ConnectionConfig `yaml:"connection"`
	Records              []Record         `yaml:"records"`
}

// ConnectionConfig holds defaults applied to every connection
type ConnectionConfig struct {
	ConnectTimeoutMs int                    `yaml:"connect_timeout_ms,omitempty"`
	MaxRetries       *int                   `yaml:"max_retries,omitempty"`
	Options          map[string]interface{} `yaml:"options,omitempty"`
}

// Record describes one module to bind: an entity, the blueprint that serves
// it and the connection it lives on.
type Record struct {
	Name         string                 `yaml:"name"`
	URI          string                 `yaml:"uri,omitempty"`
	Entity       string                 `yaml:"entity"`
	Schema       map[string]interface{} `yaml:"schema,omitempty"`
	BlueprintRef string                 `yaml:"blueprint,omitempty"`
	Options      map[string]interface{} `yaml:"options,omitempty"`

	// Blueprint is set by embedded hosts in lib mode instead of BlueprintRef
	Blueprint *modules.Blueprint `yaml:"-"`
}

// Validate reports whether the record has the fields needed to bind it
func (r *Record) Validate() error {
	if r.Name == "" {
		return errors.New("record must specify a name")
	}
	if r.Entity == "" {
		return fmt.Errorf("record '%s' must specify an entity", r.Name)
	}
	if r.BlueprintRef == "" && r.Blueprint == nil {
		return fmt.Errorf("record '%s' must specify a blueprint", r.Name)
	}
	return nil
}

// Source loads the application configuration
type Source interface {
	Load(ctx context.Context) (*AppConfig, error)
}

// ConnectionName returns the connection a record binds to
func (c *AppConfig) ConnectionName(r *Record) string {
	if c.UseGlobalURI {
		if c.GlobalConnectionName != "" {
			return c.GlobalConnectionName
		}
		return DefaultGlobalConnectionName
	}
	return r.Name
}

// ConnectionURI returns the URI a record connects to, or "" when none is set
func (c *AppConfig) ConnectionURI(r *Record) string {
	if c.UseGlobalURI {
		return c.GlobalURI
	}
	return r.URI
}

// ConnectionOptions builds the options for a record's connection from the
// connection defaults. Record options do not apply when records share the
// global connection.
func (c *AppConfig) ConnectionOptions(r *Record) base.Options {
	opts := base.Options(c.Connection.Options).Merge(nil)
	if c.Connection.ConnectTimeoutMs > 0 {
		opts[base.OptionConnectTimeoutMs] = c.Connection.ConnectTimeoutMs
	}
	if c.Connection.MaxRetries != nil {
		opts[base.OptionMaxRetries] = *c.Connection.MaxRetries
	}
	if !c.UseGlobalURI {
		opts = opts.Merge(r.Options)
	}
	return opts
}

// ApplyDefaults fills unset fields
func (c *AppConfig) ApplyDefaults() {
	if c.GlobalConnectionName == "" {
		c.GlobalConnectionName = DefaultGlobalConnectionName
	}
}

// ValidateAppConfig validates the file-level structure of an application
// config. Records are checked individually by Record.Validate at bind time.
func ValidateAppConfig(c *AppConfig) error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Version == "" {
		return fmt.Errorf("config file must specify a version")
	}
	if c.Connection.ConnectTimeoutMs < 0 {
		return fmt.Errorf("connect_timeout_ms must not be negative")
	}
	if c.Connection.MaxRetries != nil && *c.Connection.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}
