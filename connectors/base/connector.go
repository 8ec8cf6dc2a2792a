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

package base

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Transport is the driver-level link to a backing store. A handle owns
// exactly one transport and drives it through Dial and Close.
type Transport interface {
	// Lifecycle Management
	Dial(ctx context.Context) error
	Close(ctx context.Context) error
	Ping(ctx context.Context) error

	// Metadata
	Type() string // Transport type (mongodb, redis, postgres, mysql, cassandra, memory)
}

// LossNotifier is implemented by transports that can detect a dropped link
// after a successful Dial. The handle installs its callback once connected.
type LossNotifier interface {
	OnLoss(fn func(err error))
}

// Options carries free-form per-connection settings from configuration
type Options map[string]interface{}

// Option keys understood by every handle. Transports read their own keys.
const (
	OptionConnectTimeoutMs = "connect_timeout_ms"
	OptionMaxRetries       = "max_retries"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultMaxRetries     = 3
)

// GetString returns the option as a string, or def when absent
func (o Options) GetString(key, def string) string {
	if v, ok := o[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		case fmt.Stringer:
			return t.String()
		default:
			return fmt.Sprint(t)
		}
	}
	return def
}

// GetInt returns the option as an int, or def when absent or not numeric.
// YAML decodes numbers as int and JSON as float64; both are accepted.
func (o Options) GetInt(key string, def int) int {
	v, ok := o[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}

// GetBool returns the option as a bool, or def when absent
func (o Options) GetBool(key string, def bool) bool {
	v, ok := o[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

// Merge returns a new Options with the entries of other layered over o
func (o Options) Merge(other Options) Options {
	out := make(Options, len(o)+len(other))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// ConnectorConfig holds the resolved configuration for one named connection
type ConnectorConfig struct {
	Name       string        `json:"name"`        // Unique connection name
	URI        string        `json:"uri"`         // Target URI (DSN)
	Options    Options       `json:"options"`     // Transport-specific options
	Timeout    time.Duration `json:"timeout"`     // Per-attempt dial timeout (default: 10s)
	MaxRetries int           `json:"max_retries"` // Retry count for transient dial failures
}

// NewConnectorConfig resolves the handle-level settings out of opts
func NewConnectorConfig(name, uri string, opts Options) *ConnectorConfig {
	if opts == nil {
		opts = Options{}
	}
	timeout := DefaultConnectTimeout
	if ms := opts.GetInt(OptionConnectTimeoutMs, 0); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	return &ConnectorConfig{
		Name:       name,
		URI:        uri,
		Options:    opts,
		Timeout:    timeout,
		MaxRetries: opts.GetInt(OptionMaxRetries, DefaultMaxRetries),
	}
}

// HealthStatus represents the health of a connection
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`   // Overall health status
	State     State             `json:"state"`     // Handle state at check time
	Latency   time.Duration     `json:"latency"`   // Ping latency
	Details   map[string]string `json:"details"`   // Additional diagnostic info
	Timestamp time.Time         `json:"timestamp"` // When health check was performed
	Error     string            `json:"error"`     // Error message if unhealthy
}

var (
	// ErrNotFound is returned when a named connection is not registered.
	ErrNotFound = errors.New("connection not found")
	// ErrInvalidTransition is returned when a handle is asked to make an
	// illegal state change, such as opening a handle that is already connected.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrNotConnected is returned by operations that need an established link.
	ErrNotConnected = errors.New("connection not established")
	// ErrUnknownScheme is returned when no transport is registered for a URI scheme.
	ErrUnknownScheme = errors.New("unknown uri scheme")
)

// ConnectorError represents errors specific to connection operations
type ConnectorError struct {
	ConnectorName string
	Operation     string
	Message       string
	Cause         error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return e.ConnectorName + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.ConnectorName + "." + e.Operation + ": " + e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// NewConnectorError creates a new ConnectorError
func NewConnectorError(connectorName, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		ConnectorName: connectorName,
		Operation:     operation,
		Message:       message,
		Cause:         cause,
	}
}

// RedactURI returns uri with any password replaced, suitable for logs and
// API output. Unparseable input is not echoed back.
func RedactURI(uri string) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "<invalid uri>"
	}
	return u.Redacted()
}
