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

package document

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"storebind/connectors/base"
	"storebind/connectors/memory"
	"storebind/connectors/mongodb"
	"storebind/shared/logger"
)

func TestCollectionName(t *testing.T) {
	tests := map[string]string{
		"User":     "users",
		"Log":      "logs",
		"Address":  "address",
		"Category": "categories",
		"Day":      "days",
	}
	for entity, expected := range tests {
		assert.Equal(t, expected, CollectionName(entity), entity)
	}
}

func TestNew_RequiresMongoTransport(t *testing.T) {
	cfg := base.NewConnectorConfig("main", "mem://a", nil)
	tr, err := memory.New(cfg, logger.Nop())
	require.NoError(t, err)

	_, err = New(base.NewHandle(cfg, tr), "User", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a mongodb connection")
}

func TestNew_CollectionOption(t *testing.T) {
	cfg := base.NewConnectorConfig("main", "mongodb://localhost:27017/app", nil)
	tr, err := mongodb.New(cfg, logger.Nop())
	require.NoError(t, err)
	h := base.NewHandle(cfg, tr)

	m, err := New(h, "User", nil, base.Options{"collection": "people"})
	require.NoError(t, err)
	doc := m.(*Module)
	assert.Equal(t, "people", doc.CollectionName())
	assert.Equal(t, Kind, doc.Blueprint())
	assert.Equal(t, "User", doc.Entity())

	// Not dialled yet
	_, err = doc.Collection()
	assert.ErrorIs(t, err, base.ErrNotConnected)
	_, err = doc.Count(context.Background(), nil)
	assert.ErrorIs(t, err, base.ErrNotConnected)
}

func TestModule_Integration(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	cfg := base.NewConnectorConfig("it", uri, base.Options{"database": "storebind_test", "max_retries": 0})
	tr, err := mongodb.New(cfg, logger.Nop())
	require.NoError(t, err)
	h := base.NewHandle(cfg, tr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Open(ctx); err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	defer h.Close(context.Background())

	m, err := New(h, "DocTest", nil, nil)
	require.NoError(t, err)
	doc := m.(*Module)
	coll, err := doc.Collection()
	require.NoError(t, err)
	t.Cleanup(func() { _ = coll.Drop(context.Background()) })

	_, err = doc.InsertOne(ctx, bson.M{"name": "ada", "role": "admin"})
	require.NoError(t, err)

	found, err := doc.FindOne(ctx, bson.M{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "admin", found["role"])

	missing, err := doc.FindOne(ctx, bson.M{"name": "nobody"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	modified, err := doc.UpdateOne(ctx, bson.M{"name": "ada"}, bson.M{"$set": bson.M{"role": "owner"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	all, err := doc.Find(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	deleted, err := doc.DeleteOne(ctx, bson.M{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	n, err := doc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
