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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"storebind/connectors/sdk"
)

// Observer is notified after a handle emits an event. err is the dial error
// for EventError, the close or loss cause (possibly nil) for EventDisconnected,
// and nil for EventConnected. Observers run on the goroutine that caused the
// transition and never under the handle's lock.
type Observer func(h *Handle, ev Event, err error)

// Handle is a named, independently lifecycled link to one backing store.
// All state changes go through the transition table in state.go.
type Handle struct {
	id        string
	config    *ConnectorConfig
	transport Transport
	retry     *sdk.RetryConfig

	mu         sync.Mutex
	state      State
	lastErr    error
	entities   []string
	observers  []Observer
	cancelDial context.CancelFunc
	dialDone   chan struct{}
	closeDone  chan struct{}
}

// NewHandle creates a disconnected handle around t
func NewHandle(config *ConnectorConfig, t Transport) *Handle {
	done := make(chan struct{})
	close(done)
	return &Handle{
		id:        uuid.NewString(),
		config:    config,
		transport: t,
		retry:     sdk.DialRetryConfig(config.MaxRetries),
		state:     StateDisconnected,
		dialDone:  done,
	}
}

// SetRetryConfig overrides the dial retry policy. It must be called before Open.
func (h *Handle) SetRetryConfig(cfg *sdk.RetryConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retry = cfg
}

// ID returns an identifier unique to this handle instance
func (h *Handle) ID() string { return h.id }

// Name returns the caller-assigned connection name
func (h *Handle) Name() string { return h.config.Name }

// URI returns the target URI
func (h *Handle) URI() string { return h.config.URI }

// Type returns the transport type
func (h *Handle) Type() string { return h.transport.Type() }

// Config returns the resolved connection configuration
func (h *Handle) Config() *ConnectorConfig { return h.config }

// Transport returns the underlying driver transport. Module constructors use
// it to reach driver-specific clients.
func (h *Handle) Transport() Transport { return h.transport }

// State returns the current lifecycle state
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// LastError returns the most recent dial, close or loss error, if any
func (h *Handle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Subscribe registers an observer for future events
func (h *Handle) Subscribe(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, o)
}

// BindEntity records that a module for entity is bound to this handle
func (h *Handle) BindEntity(entity string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entities {
		if e == entity {
			return
		}
	}
	h.entities = append(h.entities, entity)
}

// BoundEntities returns the bound entity names in bind order
func (h *Handle) BoundEntities() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entities))
	copy(out, h.entities)
	return out
}

// ClearEntities forgets all bound entities ahead of a rebind
func (h *Handle) ClearEntities() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entities = nil
}

// Open establishes the link and blocks until it is Connected or has failed
func (h *Handle) Open(ctx context.Context) error {
	dctx, err := h.beginOpen(ctx)
	if err != nil {
		return err
	}
	return h.dial(dctx)
}

// OpenAsync moves the handle to Connecting and dials in the background.
// The outcome is reported to observers as EventConnected or EventError.
func (h *Handle) OpenAsync(ctx context.Context) error {
	dctx, err := h.beginOpen(ctx)
	if err != nil {
		return err
	}
	go func() {
		_ = h.dial(dctx)
	}()
	return nil
}

func (h *Handle) beginOpen(ctx context.Context) (context.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.transitionLocked(StateConnecting); err != nil {
		return nil, err
	}
	dctx, cancel := context.WithCancel(ctx)
	h.cancelDial = cancel
	h.dialDone = make(chan struct{})
	h.lastErr = nil
	return dctx, nil
}

func (h *Handle) dial(ctx context.Context) error {
	h.mu.Lock()
	retry := h.retry
	h.mu.Unlock()

	err := sdk.RetryVoid(ctx, retry, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
		return h.transport.Dial(attemptCtx)
	})

	h.mu.Lock()
	if h.cancelDial != nil {
		h.cancelDial()
		h.cancelDial = nil
	}
	done := h.dialDone

	if h.state != StateConnecting {
		// Close ran while we were dialing. A waiting Close (Disconnecting)
		// finishes the transport itself; one that gave up already did not.
		abandoned := h.state == StateDisconnected
		h.mu.Unlock()
		close(done)
		if err == nil && abandoned {
			_ = h.transport.Close(context.Background())
		}
		return NewConnectorError(h.config.Name, "open", "closed while connecting", ErrNotConnected)
	}

	to := StateConnected
	if err != nil {
		to = StateDisconnected
		h.lastErr = err
	}
	ev, _ := h.transitionLocked(to)
	h.mu.Unlock()

	if notifier, ok := h.transport.(LossNotifier); ok && err == nil {
		notifier.OnLoss(h.lost)
	}
	h.emit(ev, err)
	close(done)

	if err != nil {
		return NewConnectorError(h.config.Name, "open", "dial failed", err)
	}
	return nil
}

// lost handles a link drop reported by the transport
func (h *Handle) lost(err error) {
	h.mu.Lock()
	if h.state != StateConnected {
		h.mu.Unlock()
		return
	}
	ev, _ := h.transitionLocked(StateDisconnected)
	h.lastErr = err
	h.mu.Unlock()

	h.emit(ev, err)
}

// Close tears the link down and blocks until the handle is Disconnected.
// A close issued while connecting cancels the dial and waits for it to
// unwind. EventDisconnected observers have run by the time Close returns.
// The transport close error, if any, is returned but the handle still ends
// up Disconnected.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	switch h.state {
	case StateDisconnected:
		h.mu.Unlock()
		return nil
	case StateDisconnecting:
		done := h.closeDone
		h.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	wasConnecting := h.state == StateConnecting
	if _, err := h.transitionLocked(StateDisconnecting); err != nil {
		h.mu.Unlock()
		return err
	}
	closeDone := make(chan struct{})
	h.closeDone = closeDone
	dialDone := h.dialDone
	if wasConnecting && h.cancelDial != nil {
		h.cancelDial()
	}
	h.mu.Unlock()

	if wasConnecting {
		select {
		case <-dialDone:
		case <-ctx.Done():
		}
	}

	err := h.transport.Close(ctx)

	h.mu.Lock()
	ev, _ := h.transitionLocked(StateDisconnected)
	if err != nil {
		h.lastErr = err
	}
	h.mu.Unlock()

	h.emit(ev, err)
	close(closeDone)

	if err != nil {
		return NewConnectorError(h.config.Name, "close", "transport close failed", err)
	}
	return nil
}

// WaitConnected blocks until the handle is Connected, the in-flight dial
// fails, or ctx is done.
func (h *Handle) WaitConnected(ctx context.Context) error {
	for {
		h.mu.Lock()
		state, done, lastErr := h.state, h.dialDone, h.lastErr
		h.mu.Unlock()

		switch state {
		case StateConnected:
			return nil
		case StateConnecting:
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			if lastErr != nil {
				return fmt.Errorf("%w: %w", ErrNotConnected, lastErr)
			}
			return ErrNotConnected
		}
	}
}

// HealthCheck pings the transport when connected
func (h *Handle) HealthCheck(ctx context.Context) *HealthStatus {
	state := h.State()
	status := &HealthStatus{
		State:     state,
		Timestamp: time.Now(),
		Details: map[string]string{
			"type": h.transport.Type(),
			"uri":  RedactURI(h.config.URI),
		},
	}

	if state != StateConnected {
		status.Error = ErrNotConnected.Error()
		return status
	}

	start := time.Now()
	err := h.transport.Ping(ctx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Healthy = true
	return status
}

func (h *Handle) transitionLocked(to State) (Event, error) {
	from := h.state
	if !CanTransition(from, to) {
		return noEvent, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	h.state = to
	return transitionEvent(from, to), nil
}

func (h *Handle) emit(ev Event, err error) {
	if ev == noEvent {
		return
	}
	h.mu.Lock()
	observers := make([]Observer, len(h.observers))
	copy(observers, h.observers)
	h.mu.Unlock()

	for _, o := range observers {
		o(h, ev, err)
	}
}
