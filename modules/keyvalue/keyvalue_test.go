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

package keyvalue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storebind/connectors/base"
	"storebind/connectors/memory"
	redistransport "storebind/connectors/redis"
	"storebind/connectors/sqldb"
	"storebind/shared/logger"
)

type user struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func openHandle(t *testing.T, cfg *base.ConnectorConfig, tr base.Transport) *base.Handle {
	t.Helper()
	h := base.NewHandle(cfg, tr)
	require.NoError(t, h.Open(context.Background()))
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

func redisModule(t *testing.T, opts base.Options) (*Module, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := base.NewConnectorConfig("cache", "redis://"+mr.Addr(), nil)
	tr, err := redistransport.New(cfg, logger.Nop())
	require.NoError(t, err)
	h := openHandle(t, cfg, tr)

	m, err := New(h, "User", nil, opts)
	require.NoError(t, err)
	return m.(*Module), mr
}

func memoryModule(t *testing.T) *Module {
	t.Helper()
	cfg := base.NewConnectorConfig("main", "mem://kv", nil)
	tr, err := memory.New(cfg, logger.Nop())
	require.NoError(t, err)
	h := openHandle(t, cfg, tr)

	m, err := New(h, "User", nil, nil)
	require.NoError(t, err)
	return m.(*Module)
}

func TestModule_Redis(t *testing.T) {
	ctx := context.Background()
	m, mr := redisModule(t, nil)

	require.NoError(t, m.Set(ctx, "1", user{Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, m.Set(ctx, "2", user{Name: "Grace"}))

	// Stored under the entity prefix as JSON
	raw, err := mr.Get("user:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ada","email":"ada@example.com"}`, raw)

	var got user
	ok, err := m.Get(ctx, "1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ada", got.Name)

	ok, err = m.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, keys)

	deleted, err := m.Delete(ctx, "1")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = m.Delete(ctx, "1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestModule_RedisPrefixOption(t *testing.T) {
	ctx := context.Background()
	m, mr := redisModule(t, base.Options{"prefix": "app:users:"})

	require.NoError(t, m.Set(ctx, "7", user{Name: "Linus"}))
	assert.True(t, mr.Exists("app:users:7"))

	// Keys outside the prefix are not reported
	require.NoError(t, mr.Set("other:1", "x"))
	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, keys)
}

func TestModule_Memory(t *testing.T) {
	ctx := context.Background()
	m := memoryModule(t)

	require.NoError(t, m.Set(ctx, "b", user{Name: "B"}))
	require.NoError(t, m.Set(ctx, "a", user{Name: "A"}))

	var got user
	ok, err := m.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A", got.Name)

	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	assert.Error(t, m.Set(ctx, "", user{}))
}

func TestModule_NotConnected(t *testing.T) {
	cfg := base.NewConnectorConfig("main", "mem://kv", nil)
	tr, err := memory.New(cfg, logger.Nop())
	require.NoError(t, err)

	m, err := New(base.NewHandle(cfg, tr), "User", nil, nil)
	require.NoError(t, err)

	err = m.(*Module).Set(context.Background(), "1", user{})
	assert.ErrorIs(t, err, base.ErrNotConnected)

	var ce *base.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "set", ce.Operation)
}

func TestNew_RejectsOtherTransports(t *testing.T) {
	cfg := base.NewConnectorConfig("sql", "postgres://localhost/app", nil)
	tr, err := sqldb.New(cfg, logger.Nop())
	require.NoError(t, err)

	_, err = New(base.NewHandle(cfg, tr), "User", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a redis or memory connection")
}
