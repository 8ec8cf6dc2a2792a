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

// Package memory provides an in-process transport for embedded use and tests.
//
// URIs take the form mem://<store>. Query parameters (or connection options
// of the same name) shape its behavior:
//
//	dial_delay_ms   delay each Dial by this many milliseconds
//	close_delay_ms  delay each Close by this many milliseconds
//	fail_dial       every Dial fails
//	fail_close      Close fails (the handle still ends up disconnected)
package memory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"storebind/connectors/base"
	"storebind/shared/logger"
)

const TransportType = "memory"

var (
	// ErrDialRefused is returned by Dial when fail_dial is set.
	ErrDialRefused = errors.New("memory: dial refused")
	// ErrCloseFailed is returned by Close when fail_close is set.
	ErrCloseFailed = errors.New("memory: close failed")
)

// Transport is an in-memory backing store. It keeps namespaced key/value
// data for as long as the value lives, across Dial and Close.
type Transport struct {
	store      string
	dialDelay  time.Duration
	closeDelay time.Duration
	failDial   bool
	failClose  bool
	logger     *logger.Logger

	mu     sync.Mutex
	open   bool
	dials  int
	closes int
	onLoss func(error)
	data   map[string]map[string]interface{}
}

// New creates a memory transport from a connection config
func New(cfg *base.ConnectorConfig, log *logger.Logger) (*Transport, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, base.NewConnectorError(cfg.Name, "create", "invalid uri", err)
	}
	if u.Host == "" && u.Opaque == "" {
		return nil, base.NewConnectorError(cfg.Name, "create", "store name is required", nil)
	}
	if log == nil {
		log = logger.New(TransportType)
	}

	opts := cfg.Options
	q := u.Query()
	store := u.Host
	if store == "" {
		store = u.Opaque
	}

	t := &Transport{
		store:      store,
		dialDelay:  time.Duration(intParam(q, opts, "dial_delay_ms")) * time.Millisecond,
		closeDelay: time.Duration(intParam(q, opts, "close_delay_ms")) * time.Millisecond,
		failDial:   boolParam(q, opts, "fail_dial"),
		failClose:  boolParam(q, opts, "fail_close"),
		logger:     log,
		data:       make(map[string]map[string]interface{}),
	}
	return t, nil
}

func intParam(q url.Values, opts base.Options, key string) int {
	if v := q.Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return opts.GetInt(key, 0)
}

func boolParam(q url.Values, opts base.Options, key string) bool {
	if v := q.Get(key); v != "" {
		b, err := strconv.ParseBool(v)
		return err == nil && b
	}
	return opts.GetBool(key, false)
}

// Type returns the transport type
func (t *Transport) Type() string { return TransportType }

// Store returns the store name taken from the URI host
func (t *Transport) Store() string { return t.store }

// Dial opens the store
func (t *Transport) Dial(ctx context.Context) error {
	t.mu.Lock()
	t.dials++
	t.mu.Unlock()

	if t.dialDelay > 0 {
		select {
		case <-time.After(t.dialDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if t.failDial {
		return ErrDialRefused
	}

	t.mu.Lock()
	t.open = true
	t.mu.Unlock()

	t.logger.Debug("Memory store opened", map[string]interface{}{"store": t.store})
	return nil
}

// Close closes the store. It is safe to call when the store was never opened.
func (t *Transport) Close(ctx context.Context) error {
	if t.closeDelay > 0 {
		select {
		case <-time.After(t.closeDelay):
		case <-ctx.Done():
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.closes++
	t.open = false
	if t.failClose {
		return ErrCloseFailed
	}
	return nil
}

// Ping reports whether the store is open
func (t *Transport) Ping(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return base.ErrNotConnected
	}
	return nil
}

// OnLoss installs the callback used by Drop
func (t *Transport) OnLoss(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLoss = fn
}

// Drop simulates the store going away underneath an open link
func (t *Transport) Drop(cause error) {
	t.mu.Lock()
	t.open = false
	fn := t.onLoss
	t.mu.Unlock()

	if cause == nil {
		cause = fmt.Errorf("memory: store %q dropped", t.store)
	}
	if fn != nil {
		fn(cause)
	}
}

// Dials returns how many times Dial has been called
func (t *Transport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

// Closes returns how many times Close has been called
func (t *Transport) Closes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

// Set stores value under key in namespace ns
func (t *Transport) Set(ns, key string, value interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return base.ErrNotConnected
	}
	bucket, ok := t.data[ns]
	if !ok {
		bucket = make(map[string]interface{})
		t.data[ns] = bucket
	}
	bucket[key] = value
	return nil
}

// Get returns the value under key in namespace ns
func (t *Transport) Get(ns, key string) (interface{}, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil, false, base.ErrNotConnected
	}
	v, ok := t.data[ns][key]
	return v, ok, nil
}

// Delete removes key from namespace ns and reports whether it existed
func (t *Transport) Delete(ns, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return false, base.ErrNotConnected
	}
	_, ok := t.data[ns][key]
	delete(t.data[ns], key)
	return ok, nil
}

// Keys returns the keys of namespace ns in sorted order
func (t *Transport) Keys(ns string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil, base.ErrNotConnected
	}
	keys := make([]string, 0, len(t.data[ns]))
	for k := range t.data[ns] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
