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

package registry

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"storebind/connectors/base"
	"storebind/shared/logger"
)

// TransportFactory creates an undialled transport for a connection config
type TransportFactory interface {
	Create(cfg *base.ConnectorConfig) (base.Transport, error)
}

// ConnectionInfo describes one registered connection
type ConnectionInfo struct {
	Name          string     `json:"name"`
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	State         base.State `json:"state"`
	BoundEntities []string   `json:"bound_entities"`
	URI           string     `json:"uri"` // credentials redacted
}

// Registry owns the name -> handle map. It is the only component that adds
// or removes entries; callers receive handle references, never ownership.
// Thread-safe for concurrent access.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*base.Handle
	order   []string
	factory TransportFactory
	logger  *logger.Logger
	metrics *Metrics
}

// NewRegistry creates an empty registry. reg may be nil to skip metric registration.
func NewRegistry(factory TransportFactory, log *logger.Logger, reg prometheus.Registerer) *Registry {
	if log == nil {
		log = logger.New("registry")
	}
	return &Registry{
		handles: make(map[string]*base.Handle),
		factory: factory,
		logger:  log,
		metrics: NewMetrics(reg),
	}
}

// AddConnection registers name and starts establishing it in the background.
//
// An existing name is left untouched and a warning is logged. If the
// transport cannot be created (malformed URI, unknown scheme) the error is
// logged and nothing is stored. Otherwise the handle is stored in state
// Connecting before this returns; a later dial failure is logged and keeps
// the entry, while reaching Disconnected removes it.
// The transport is created outside the registry lock.
func (r *Registry) AddConnection(ctx context.Context, name, uri string, opts base.Options) {
	if _, exists := r.GetConnection(name); exists {
		r.warnDuplicate(name)
		return
	}

	cfg := base.NewConnectorConfig(name, uri, opts)
	transport, err := r.factory.Create(cfg)
	if err != nil {
		r.metrics.event("create_failed")
		r.logger.ErrorWithErr("Failed to create connection", err, map[string]interface{}{
			"connection": name,
			"uri":        base.RedactURI(uri),
		})
		return
	}

	r.mu.Lock()
	if _, exists := r.handles[name]; exists {
		r.mu.Unlock()
		// Lost the race to a concurrent add; this transport was never dialled
		_ = transport.Close(context.Background())
		r.warnDuplicate(name)
		return
	}
	h := base.NewHandle(cfg, transport)
	h.Subscribe(r.observe)
	r.handles[name] = h
	r.order = append(r.order, name)
	count := len(r.handles)
	r.mu.Unlock()

	r.metrics.setActive(count)
	r.logger.Info("Connection registered", map[string]interface{}{
		"connection": name,
		"type":       transport.Type(),
		"uri":        base.RedactURI(uri),
	})

	// The dial outlives the caller's request; only process exit or Close stops it
	if err := h.OpenAsync(context.WithoutCancel(ctx)); err != nil {
		r.logger.ErrorWithErr("Failed to start connection", err, map[string]interface{}{"connection": name})
	}
}

func (r *Registry) warnDuplicate(name string) {
	r.logger.Warn("Connection already registered, ignoring add", map[string]interface{}{
		"connection": name,
	})
}

// observe is attached to every handle before its dial starts
func (r *Registry) observe(h *base.Handle, ev base.Event, err error) {
	r.metrics.event(ev.String())
	fields := map[string]interface{}{
		"connection": h.Name(),
		"type":       h.Type(),
	}

	switch ev {
	case base.EventConnected:
		r.logger.Info("Connection established", fields)
	case base.EventError:
		r.logger.ErrorWithErr("Connection failed", err, fields)
	case base.EventDisconnected:
		r.remove(h)
		if err != nil {
			fields["error"] = err.Error()
		}
		r.logger.Info("Connection disconnected", fields)
	}
}

// remove drops h from the map if it is still the handle stored under its name
func (r *Registry) remove(h *base.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := h.Name()
	if current, ok := r.handles[name]; !ok || current != h {
		return
	}
	delete(r.handles, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.metrics.setActive(len(r.handles))
}

// GetConnection returns the handle for name without creating one
func (r *Registry) GetConnection(name string) (*base.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}

// GetOrCreateConnection returns the handle for name, adding it first if absent.
//
// Two callers racing on an absent name may both reach AddConnection. Only
// the first handle stored under the name is dialled; both callers then
// re-read the map and receive that handle. The result is
// false only when the transport could not be created.
func (r *Registry) GetOrCreateConnection(ctx context.Context, name, uri string, opts base.Options) (*base.Handle, bool) {
	if h, ok := r.GetConnection(name); ok {
		return h, true
	}
	r.AddConnection(ctx, name, uri, opts)
	return r.GetConnection(name)
}

// State returns the handle state, or Disconnected when name is absent
func (r *Registry) State(name string) base.State {
	h, ok := r.GetConnection(name)
	if !ok {
		return base.StateDisconnected
	}
	return h.State()
}

// ActiveConnectionCount returns the number of stored handles, whatever their state
func (r *Registry) ActiveConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// ConnectionNames returns connection names in insertion order
func (r *Registry) ConnectionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// ConnectionDetails returns per-connection details in insertion order
func (r *Registry) ConnectionDetails() []ConnectionInfo {
	handles := r.snapshot()
	details := make([]ConnectionInfo, 0, len(handles))
	for _, h := range handles {
		details = append(details, ConnectionInfo{
			Name:          h.Name(),
			ID:            h.ID(),
			Type:          h.Type(),
			State:         h.State(),
			BoundEntities: h.BoundEntities(),
			URI:           base.RedactURI(h.URI()),
		})
	}
	return details
}

// CloseConnection closes the named handle and waits for it to finish.
// An absent name logs a warning and returns nil. The entry is gone from the
// map when this returns, even if the transport close failed.
func (r *Registry) CloseConnection(ctx context.Context, name string) error {
	h, ok := r.GetConnection(name)
	if !ok {
		r.logger.Warn("Close requested for unknown connection", map[string]interface{}{"connection": name})
		return nil
	}

	err := h.Close(ctx)
	r.remove(h)

	if err != nil {
		r.metrics.closeFailed()
		r.logger.ErrorWithErr("Failed to close connection", err, map[string]interface{}{"connection": name})
		return err
	}
	return nil
}

// CloseAll closes every handle concurrently and waits for all of them.
// One failing or slow close does not stop the others. Handles added while a
// pass is running are closed by a further pass, so the registry is empty when
// CloseAll returns. Failures are returned together.
func (r *Registry) CloseAll(ctx context.Context) error {
	var result *multierror.Error
	for {
		handles := r.snapshot()
		if len(handles) == 0 {
			break
		}
		r.logger.Info("Closing all connections", map[string]interface{}{"count": len(handles)})
		if errs := r.closeHandles(ctx, handles); len(errs) > 0 {
			result = multierror.Append(result, errs...)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		r.logger.Warn("Closed all connections with failures", map[string]interface{}{"failures": len(result.Errors)})
		return err
	}
	r.logger.Info("All connections closed", nil)
	return nil
}

// closeHandles closes handles in parallel and removes each from the map
// whatever the outcome.
func (r *Registry) closeHandles(ctx context.Context, handles []*base.Handle) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, h := range handles {
		wg.Add(1)
		go func(h *base.Handle) {
			defer wg.Done()
			if err := h.Close(ctx); err != nil {
				r.metrics.closeFailed()
				r.logger.ErrorWithErr("Failed to close connection", err, map[string]interface{}{"connection": h.Name()})
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(h)
	}
	wg.Wait()

	for _, h := range handles {
		r.remove(h)
	}
	return errs
}

// HealthCheck pings every connection
// Returns a map of connection names to their health status
func (r *Registry) HealthCheck(ctx context.Context) map[string]*base.HealthStatus {
	results := make(map[string]*base.HealthStatus)
	for _, h := range r.snapshot() {
		status := h.HealthCheck(ctx)
		if !status.Healthy {
			r.logger.Warn("Health check failed", map[string]interface{}{
				"connection": h.Name(),
				"error":      status.Error,
			})
		}
		results[h.Name()] = status
	}
	return results
}

// ClearBindings forgets the bound entity list on every handle, ahead of a rebind
func (r *Registry) ClearBindings() {
	for _, h := range r.snapshot() {
		h.ClearEntities()
	}
}

// snapshot returns the stored handles in insertion order
func (r *Registry) snapshot() []*base.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]*base.Handle, 0, len(r.order))
	for _, name := range r.order {
		handles = append(handles, r.handles[name])
	}
	return handles
}
