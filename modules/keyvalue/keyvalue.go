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

// Package keyvalue provides a blueprint that stores entity records as JSON
// values keyed by id. It runs over a Redis connection or the in-memory
// transport.
package keyvalue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"

	"storebind/connectors/base"
	"storebind/connectors/memory"
	redistransport "storebind/connectors/redis"
	"storebind/modules"
)

// Kind is the constructor identifier
const Kind = "keyvalue"

const scanBatch = 100

// backend is the storage surface the module needs from a transport
type backend interface {
	set(ctx context.Context, key string, value []byte) error
	get(ctx context.Context, key string) ([]byte, bool, error)
	del(ctx context.Context, key string) (bool, error)
	keys(ctx context.Context) ([]string, error)
}

// Module stores records for one entity
type Module struct {
	modules.BaseModule
	store backend
}

// New is the keyvalue constructor. On Redis every key is stored as
// "<prefix><id>"; the prefix defaults to "<entity>:" and can be set with the
// "prefix" option. On the memory transport the entity name is the namespace.
func New(h *base.Handle, entity string, schema modules.Schema, opts base.Options) (modules.Module, error) {
	var store backend
	if t, ok := modules.Transport[*redistransport.Transport](h); ok {
		store = &redisBackend{t: t, prefix: opts.GetString("prefix", strings.ToLower(entity)+":")}
	} else if t, ok := modules.Transport[*memory.Transport](h); ok {
		store = &memoryBackend{t: t, ns: entity}
	} else {
		return nil, fmt.Errorf("keyvalue blueprint needs a redis or memory connection, got %s", h.Type())
	}
	return &Module{
		BaseModule: modules.NewBaseModule(Kind, entity, h, schema),
		store:      store,
	}, nil
}

// Set stores value under id
func (m *Module) Set(ctx context.Context, id string, value interface{}) error {
	if id == "" {
		return errors.New("id is required")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s %q: %w", m.Entity(), id, err)
	}
	if err := m.store.set(ctx, id, data); err != nil {
		return m.wrap("set", err)
	}
	return nil
}

// Get decodes the value stored under id into out and reports whether it exists
func (m *Module) Get(ctx context.Context, id string, out interface{}) (bool, error) {
	data, ok, err := m.store.get(ctx, id)
	if err != nil {
		return false, m.wrap("get", err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("failed to decode %s %q: %w", m.Entity(), id, err)
	}
	return true, nil
}

// Delete removes id and reports whether it existed
func (m *Module) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := m.store.del(ctx, id)
	if err != nil {
		return false, m.wrap("delete", err)
	}
	return ok, nil
}

// Keys returns every stored id in sorted order
func (m *Module) Keys(ctx context.Context) ([]string, error) {
	keys, err := m.store.keys(ctx)
	if err != nil {
		return nil, m.wrap("keys", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Module) wrap(op string, err error) error {
	return base.NewConnectorError(m.Connection().Name(), op, m.Entity(), err)
}

type redisBackend struct {
	t      *redistransport.Transport
	prefix string
}

func (b *redisBackend) client() (*redis.Client, error) {
	c := b.t.Client()
	if c == nil {
		return nil, base.ErrNotConnected
	}
	return c, nil
}

func (b *redisBackend) set(ctx context.Context, key string, value []byte) error {
	c, err := b.client()
	if err != nil {
		return err
	}
	return c.Set(ctx, b.prefix+key, value, 0).Err()
}

func (b *redisBackend) get(ctx context.Context, key string) ([]byte, bool, error) {
	c, err := b.client()
	if err != nil {
		return nil, false, err
	}
	data, err := c.Get(ctx, b.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *redisBackend) del(ctx context.Context, key string) (bool, error) {
	c, err := b.client()
	if err != nil {
		return false, err
	}
	n, err := c.Del(ctx, b.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *redisBackend) keys(ctx context.Context) ([]string, error) {
	c, err := b.client()
	if err != nil {
		return nil, err
	}
	var (
		out    []string
		cursor uint64
	)
	for {
		batch, next, err := c.Scan(ctx, cursor, b.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			out = append(out, strings.TrimPrefix(k, b.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

type memoryBackend struct {
	t  *memory.Transport
	ns string
}

func (b *memoryBackend) set(_ context.Context, key string, value []byte) error {
	return b.t.Set(b.ns, key, value)
}

func (b *memoryBackend) get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok, err := b.t.Get(b.ns, key)
	if err != nil || !ok {
		return nil, false, err
	}
	data, isBytes := v.([]byte)
	if !isBytes {
		return nil, false, fmt.Errorf("unexpected value type %T", v)
	}
	return data, true, nil
}

func (b *memoryBackend) del(_ context.Context, key string) (bool, error) {
	return b.t.Delete(b.ns, key)
}

func (b *memoryBackend) keys(_ context.Context) ([]string, error) {
	return b.t.Keys(b.ns)
}
