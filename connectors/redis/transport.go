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

package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"storebind/connectors/base"
	"storebind/shared/logger"
)

const (
	TransportType = "redis"

	DefaultPoolSize     = 100
	DefaultMinIdleConns = 10
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Transport links a handle to a Redis server
type Transport struct {
	name   string
	opts   *redis.Options
	logger *logger.Logger

	mu     sync.RWMutex
	client *redis.Client
}

// New parses a redis:// or rediss:// URI and prepares a transport
func New(cfg *base.ConnectorConfig, log *logger.Logger) (*Transport, error) {
	if log == nil {
		log = logger.New(TransportType)
	}

	opts, err := redis.ParseURL(cfg.URI)
	if err != nil {
		return nil, base.NewConnectorError(cfg.Name, "create", "failed to parse redis url", err)
	}

	o := cfg.Options
	opts.DialTimeout = cfg.Timeout
	opts.ReadTimeout = DefaultReadTimeout
	opts.WriteTimeout = DefaultWriteTimeout
	opts.PoolSize = o.GetInt("pool_size", DefaultPoolSize)
	opts.MinIdleConns = o.GetInt("min_idle_conns", DefaultMinIdleConns)
	if db := o.GetInt("db", -1); db >= 0 {
		opts.DB = db
	}
	// The handle owns retries
	opts.MaxRetries = 0

	return &Transport{name: cfg.Name, opts: opts, logger: log}, nil
}

// Type returns the transport type
func (t *Transport) Type() string { return TransportType }

// Dial creates the client and verifies the server answers PING
func (t *Transport) Dial(ctx context.Context) error {
	client := redis.NewClient(t.opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return base.NewConnectorError(t.name, "dial", "failed to ping Redis", err)
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	t.logger.Info("Connected to Redis", map[string]interface{}{
		"connection": t.name,
		"addr":       t.opts.Addr,
		"db":         t.opts.DB,
		"pool_size":  t.opts.PoolSize,
	})
	return nil
}

// Close closes the client. Calling it before Dial is a no-op.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return base.NewConnectorError(t.name, "close", "failed to close connection", err)
	}

	t.logger.Info("Disconnected from Redis", map[string]interface{}{"connection": t.name})
	return nil
}

// Ping checks the server answers PING
func (t *Transport) Ping(ctx context.Context) error {
	client := t.Client()
	if client == nil {
		return base.ErrNotConnected
	}
	return client.Ping(ctx).Err()
}

// Client returns the live client, or nil before Dial
func (t *Transport) Client() *redis.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client
}

// Addr returns host:port of the server
func (t *Transport) Addr() string { return t.opts.Addr }

// DB returns the selected database number
func (t *Transport) DB() int { return t.opts.DB }

// Stats returns pool statistics for diagnostics
func (t *Transport) Stats() map[string]string {
	client := t.Client()
	if client == nil {
		return nil
	}
	s := client.PoolStats()
	return map[string]string{
		"hits":        fmt.Sprintf("%d", s.Hits),
		"misses":      fmt.Sprintf("%d", s.Misses),
		"total_conns": fmt.Sprintf("%d", s.TotalConns),
		"idle_conns":  fmt.Sprintf("%d", s.IdleConns),
	}
}
