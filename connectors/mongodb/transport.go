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

package mongodb

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/description"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"storebind/connectors/base"
	"storebind/shared/logger"
)

const (
	TransportType = "mongodb"

	// DefaultMaxPoolSize is the default maximum connection pool size
	DefaultMaxPoolSize = 100
	// DefaultMinPoolSize is the default minimum connection pool size
	DefaultMinPoolSize = 0
	// DefaultDisconnectTimeout bounds client.Disconnect
	DefaultDisconnectTimeout = 10 * time.Second
)

// Transport links a handle to a MongoDB deployment
type Transport struct {
	name       string
	clientOpts *options.ClientOptions
	dbName     string
	logger     *logger.Logger

	mu       sync.RWMutex
	client   *mongo.Client
	database *mongo.Database
	onLoss   func(error)
	reached  bool
}

// New validates the URI and options and prepares a transport. No network
// traffic happens until Dial.
func New(cfg *base.ConnectorConfig, log *logger.Logger) (*Transport, error) {
	if log == nil {
		log = logger.New(TransportType)
	}

	dbName, err := databaseName(cfg)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		name:   cfg.Name,
		dbName: dbName,
		logger: log,
	}
	clientOpts := buildClientOptions(cfg, t.topologyChanged)
	if err := clientOpts.Validate(); err != nil {
		return nil, base.NewConnectorError(cfg.Name, "create", "invalid mongodb uri", err)
	}
	t.clientOpts = clientOpts
	return t, nil
}

// databaseName resolves the database from the "database" option, falling
// back to the URI path.
func databaseName(cfg *base.ConnectorConfig) (string, error) {
	if db := cfg.Options.GetString("database", ""); db != "" {
		return db, nil
	}
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return "", base.NewConnectorError(cfg.Name, "create", "invalid mongodb uri", err)
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		return db, nil
	}
	return "", base.NewConnectorError(cfg.Name, "create", "database name is required", nil)
}

// buildClientOptions maps connection options onto driver options
func buildClientOptions(cfg *base.ConnectorConfig, onTopology func(*event.TopologyDescriptionChangedEvent)) *options.ClientOptions {
	opts := cfg.Options
	clientOpts := options.Client().ApplyURI(cfg.URI)

	clientOpts.SetMaxPoolSize(uint64(opts.GetInt("max_pool_size", DefaultMaxPoolSize)))
	clientOpts.SetMinPoolSize(uint64(opts.GetInt("min_pool_size", DefaultMinPoolSize)))
	clientOpts.SetConnectTimeout(cfg.Timeout)

	if ms := opts.GetInt("server_selection_timeout_ms", 0); ms > 0 {
		clientOpts.SetServerSelectionTimeout(time.Duration(ms) * time.Millisecond)
	} else {
		clientOpts.SetServerSelectionTimeout(cfg.Timeout)
	}
	if ms := opts.GetInt("socket_timeout_ms", 0); ms > 0 {
		clientOpts.SetSocketTimeout(time.Duration(ms) * time.Millisecond)
	}

	switch strings.ToLower(opts.GetString("read_preference", "")) {
	case "primary":
		clientOpts.SetReadPreference(readpref.Primary())
	case "primarypreferred":
		clientOpts.SetReadPreference(readpref.PrimaryPreferred())
	case "secondary":
		clientOpts.SetReadPreference(readpref.Secondary())
	case "secondarypreferred":
		clientOpts.SetReadPreference(readpref.SecondaryPreferred())
	case "nearest":
		clientOpts.SetReadPreference(readpref.Nearest())
	}

	clientOpts.SetAppName(opts.GetString("app_name", "storebind"))
	clientOpts.SetRetryWrites(true)
	clientOpts.SetRetryReads(true)

	if onTopology != nil {
		clientOpts.SetServerMonitor(&event.ServerMonitor{
			TopologyDescriptionChanged: onTopology,
		})
	}
	return clientOpts
}

// Type returns the transport type
func (t *Transport) Type() string { return TransportType }

// Dial connects the client and verifies the primary is reachable
func (t *Transport) Dial(ctx context.Context) error {
	client, err := mongo.Connect(ctx, t.clientOpts)
	if err != nil {
		return base.NewConnectorError(t.name, "dial", "failed to connect to MongoDB", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return base.NewConnectorError(t.name, "dial", "failed to ping MongoDB", err)
	}

	t.mu.Lock()
	t.client = client
	t.database = client.Database(t.dbName)
	t.reached = true
	t.mu.Unlock()

	t.logger.Info("Connected to MongoDB", map[string]interface{}{
		"connection": t.name,
		"database":   t.dbName,
	})
	return nil
}

// Close disconnects the client. Calling it before Dial is a no-op.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.database = nil
	t.reached = false
	t.mu.Unlock()

	if client == nil {
		return nil
	}

	disconnectCtx, cancel := context.WithTimeout(ctx, DefaultDisconnectTimeout)
	defer cancel()

	if err := client.Disconnect(disconnectCtx); err != nil {
		return base.NewConnectorError(t.name, "close", "failed to disconnect", err)
	}

	t.logger.Info("Disconnected from MongoDB", map[string]interface{}{"connection": t.name})
	return nil
}

// Ping verifies the primary is reachable
func (t *Transport) Ping(ctx context.Context) error {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()

	if client == nil {
		return base.ErrNotConnected
	}
	return client.Ping(ctx, readpref.Primary())
}

// OnLoss installs the callback fired when every known server becomes unreachable
func (t *Transport) OnLoss(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLoss = fn
}

// Database returns the configured database, or nil before Dial
func (t *Transport) Database() *mongo.Database {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.database
}

// DatabaseName returns the configured database name
func (t *Transport) DatabaseName() string { return t.dbName }

func (t *Transport) topologyChanged(evt *event.TopologyDescriptionChangedEvent) {
	if reachable(evt.PreviousDescription) && !reachable(evt.NewDescription) {
		t.mu.Lock()
		fn := t.onLoss
		wasUp := t.reached
		t.reached = false
		t.mu.Unlock()

		if fn != nil && wasUp {
			fn(base.NewConnectorError(t.name, "monitor", "all MongoDB servers unreachable", nil))
		}
	}
}

// reachable reports whether any server in the topology has a known kind
func reachable(topo description.Topology) bool {
	for _, s := range topo.Servers {
		if s.Kind != description.Unknown {
			return true
		}
	}
	return false
}
