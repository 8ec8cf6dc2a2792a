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

package cassandra

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gocql/gocql"

	"storebind/connectors/base"
	"storebind/shared/logger"
)

const TransportType = "cassandra"

// Transport links a handle to a Cassandra or ScyllaDB cluster
type Transport struct {
	name        string
	cluster     *gocql.ClusterConfig
	consistency string
	logger      *logger.Logger

	mu      sync.RWMutex
	session *gocql.Session
}

// New parses cassandra://[user:pass@]host1,host2[:port]/keyspace and
// prepares a cluster configuration.
func New(cfg *base.ConnectorConfig, log *logger.Logger) (*Transport, error) {
	if log == nil {
		log = logger.New(TransportType)
	}

	hosts, keyspace, user, err := parseConnectionURL(cfg.URI)
	if err != nil {
		return nil, base.NewConnectorError(cfg.Name, "create", "invalid connection URL", err)
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.Timeout
	cluster.NumConns = cfg.Options.GetInt("num_conns", 2)

	consistency := strings.ToUpper(cfg.Options.GetString("consistency", "QUORUM"))
	cluster.Consistency = parseConsistency(consistency)

	if user != nil {
		password, _ := user.Password()
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: user.Username(),
			Password: password,
		}
	}

	return &Transport{
		name:        cfg.Name,
		cluster:     cluster,
		consistency: consistency,
		logger:      log,
	}, nil
}

func parseConnectionURL(raw string) ([]string, string, *url.Userinfo, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", nil, err
	}
	if u.Scheme != "cassandra" {
		return nil, "", nil, fmt.Errorf("unexpected scheme %q (expected: cassandra://host:port/keyspace)", u.Scheme)
	}

	keyspace := strings.Trim(u.Path, "/")
	if u.Host == "" || keyspace == "" || strings.Contains(keyspace, "/") {
		return nil, "", nil, fmt.Errorf("invalid connection URL: missing hosts or keyspace")
	}

	var hosts []string
	for _, h := range strings.Split(u.Host, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts, keyspace, u.User, nil
}

// parseConsistency converts string to gocql.Consistency
func parseConsistency(level string) gocql.Consistency {
	switch strings.ToUpper(level) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "THREE":
		return gocql.Three
	case "ALL":
		return gocql.All
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.Quorum
	}
}

// Type returns the transport type
func (t *Transport) Type() string { return TransportType }

// Dial creates the session. gocql has no context-aware session creation,
// so ctx is only checked before starting.
func (t *Transport) Dial(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	session, err := t.cluster.CreateSession()
	if err != nil {
		return base.NewConnectorError(t.name, "dial", "failed to create session", err)
	}

	t.mu.Lock()
	t.session = session
	t.mu.Unlock()

	t.logger.Info("Connected to Cassandra", map[string]interface{}{
		"connection":  t.name,
		"keyspace":    t.cluster.Keyspace,
		"consistency": t.consistency,
	})
	return nil
}

// Close closes the session. Calling it before Dial is a no-op.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	session := t.session
	t.session = nil
	t.mu.Unlock()

	if session == nil {
		return nil
	}
	session.Close()
	t.logger.Info("Disconnected from Cassandra", map[string]interface{}{"connection": t.name})
	return nil
}

// Ping reads the server release version
func (t *Transport) Ping(ctx context.Context) error {
	session := t.Session()
	if session == nil {
		return base.ErrNotConnected
	}
	var version string
	return session.Query("SELECT release_version FROM system.local").WithContext(ctx).Scan(&version)
}

// Session returns the live session, or nil before Dial
func (t *Transport) Session() *gocql.Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.session
}

// Keyspace returns the configured keyspace
func (t *Transport) Keyspace() string { return t.cluster.Keyspace }
