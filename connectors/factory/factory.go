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

// Package factory maps URI schemes to transport constructors.
package factory

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"storebind/connectors/base"
	"storebind/connectors/cassandra"
	"storebind/connectors/memory"
	"storebind/connectors/mongodb"
	"storebind/connectors/redis"
	"storebind/connectors/sqldb"
	"storebind/shared/logger"
)

// TransportCreator builds an undialled transport for a connection config.
// It must not perform network I/O.
type TransportCreator func(cfg *base.ConnectorConfig, log *logger.Logger) (base.Transport, error)

// Factory holds registered transport creators keyed by lower-case URI scheme
type Factory struct {
	mu       sync.RWMutex
	creators map[string]TransportCreator
	logger   *logger.Logger
}

// New creates an empty factory
func New(log *logger.Logger) *Factory {
	if log == nil {
		log = logger.New("factory")
	}
	return &Factory{
		creators: make(map[string]TransportCreator),
		logger:   log,
	}
}

// NewDefault creates a factory with every built-in transport registered
func NewDefault(log *logger.Logger) *Factory {
	f := New(log)
	f.RegisterBuiltinTransports()
	return f
}

// Register adds a creator for scheme.
// Returns an error if the scheme is already registered.
func (f *Factory) Register(scheme string, creator TransportCreator) error {
	scheme = strings.ToLower(scheme)
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.creators[scheme]; exists {
		return fmt.Errorf("transport scheme '%s' already registered", scheme)
	}
	f.creators[scheme] = creator
	return nil
}

// RegisterOrReplace adds or replaces the creator for scheme
func (f *Factory) RegisterOrReplace(scheme string, creator TransportCreator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[strings.ToLower(scheme)] = creator
}

// Create builds a transport for cfg.URI. Unknown schemes wrap base.ErrUnknownScheme.
func (f *Factory) Create(cfg *base.ConnectorConfig) (base.Transport, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, base.NewConnectorError(cfg.Name, "create", "invalid uri", err)
	}
	scheme := strings.ToLower(u.Scheme)

	f.mu.RLock()
	creator, exists := f.creators[scheme]
	f.mu.RUnlock()

	if !exists {
		return nil, base.NewConnectorError(cfg.Name, "create",
			fmt.Sprintf("no transport registered for scheme %q", scheme), base.ErrUnknownScheme)
	}

	t, err := creator(cfg, f.logger.Named(scheme))
	if err != nil {
		return nil, err
	}
	f.logger.Debug("Created transport", map[string]interface{}{
		"connection": cfg.Name,
		"scheme":     scheme,
		"type":       t.Type(),
	})
	return t, nil
}

// IsRegistered checks if a scheme has a creator registered
func (f *Factory) IsRegistered(scheme string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.creators[strings.ToLower(scheme)]
	return exists
}

// RegisteredSchemes returns all registered schemes in sorted order
func (f *Factory) RegisteredSchemes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	schemes := make([]string, 0, len(f.creators))
	for s := range f.creators {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Count returns the number of registered schemes
func (f *Factory) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.creators)
}

// Clear removes all registered creators.
// Useful for testing.
func (f *Factory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators = make(map[string]TransportCreator)
}

// RegisterBuiltinTransports registers the MongoDB, Redis, SQL, Cassandra and
// memory transports under their URI schemes.
func (f *Factory) RegisterBuiltinTransports() {
	mongo := func(cfg *base.ConnectorConfig, log *logger.Logger) (base.Transport, error) {
		return mongodb.New(cfg, log)
	}
	f.RegisterOrReplace("mongodb", mongo)
	f.RegisterOrReplace("mongodb+srv", mongo)

	kv := func(cfg *base.ConnectorConfig, log *logger.Logger) (base.Transport, error) {
		return redis.New(cfg, log)
	}
	f.RegisterOrReplace("redis", kv)
	f.RegisterOrReplace("rediss", kv)

	sql := func(cfg *base.ConnectorConfig, log *logger.Logger) (base.Transport, error) {
		return sqldb.New(cfg, log)
	}
	f.RegisterOrReplace("postgres", sql)
	f.RegisterOrReplace("postgresql", sql)
	f.RegisterOrReplace("mysql", sql)

	f.RegisterOrReplace("cassandra", func(cfg *base.ConnectorConfig, log *logger.Logger) (base.Transport, error) {
		return cassandra.New(cfg, log)
	})

	f.RegisterOrReplace("mem", func(cfg *base.ConnectorConfig, log *logger.Logger) (base.Transport, error) {
		return memory.New(cfg, log)
	})

	f.logger.Debug("Registered built-in transports", map[string]interface{}{"schemes": f.RegisteredSchemes()})
}
