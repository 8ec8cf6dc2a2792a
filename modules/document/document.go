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

// Package document provides a blueprint that binds an entity to a MongoDB
// collection.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storebind/connectors/base"
	"storebind/connectors/mongodb"
	"storebind/modules"
)

// Kind is the constructor identifier
const Kind = "document"

// Module exposes one MongoDB collection for an entity
type Module struct {
	modules.BaseModule
	transport  *mongodb.Transport
	collection string
}

// New is the document constructor. The collection comes from the
// "collection" option, defaulting to the lower-cased, pluralised entity.
func New(h *base.Handle, entity string, schema modules.Schema, opts base.Options) (modules.Module, error) {
	t, ok := modules.Transport[*mongodb.Transport](h)
	if !ok {
		return nil, fmt.Errorf("document blueprint needs a mongodb connection, got %s", h.Type())
	}
	return &Module{
		BaseModule: modules.NewBaseModule(Kind, entity, h, schema),
		transport:  t,
		collection: opts.GetString("collection", CollectionName(entity)),
	}, nil
}

// CollectionName derives a collection name from an entity name
func CollectionName(entity string) string {
	name := strings.ToLower(entity)
	if strings.HasSuffix(name, "s") {
		return name
	}
	if strings.HasSuffix(name, "y") && len(name) > 1 && !strings.ContainsAny(name[len(name)-2:len(name)-1], "aeiou") {
		return name[:len(name)-1] + "ies"
	}
	return name + "s"
}

// CollectionName returns the bound collection name
func (m *Module) CollectionName() string { return m.collection }

// Collection returns the driver collection. It fails until the connection
// is established.
func (m *Module) Collection() (*mongo.Collection, error) {
	db := m.transport.Database()
	if db == nil {
		return nil, base.ErrNotConnected
	}
	return db.Collection(m.collection), nil
}

// InsertOne inserts doc and returns the generated id
func (m *Module) InsertOne(ctx context.Context, doc interface{}) (interface{}, error) {
	coll, err := m.Collection()
	if err != nil {
		return nil, err
	}
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, base.NewConnectorError(m.Connection().Name(), "insert", m.collection, err)
	}
	return res.InsertedID, nil
}

// FindOne returns the first document matching filter, or nil when none does
func (m *Module) FindOne(ctx context.Context, filter interface{}) (bson.M, error) {
	coll, err := m.Collection()
	if err != nil {
		return nil, err
	}
	var doc bson.M
	err = coll.FindOne(ctx, filterOrAll(filter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, base.NewConnectorError(m.Connection().Name(), "find", m.collection, err)
	}
	return doc, nil
}

// Find returns up to limit documents matching filter. limit <= 0 means no limit.
func (m *Module) Find(ctx context.Context, filter interface{}, limit int64) ([]bson.M, error) {
	coll, err := m.Collection()
	if err != nil {
		return nil, err
	}
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := coll.Find(ctx, filterOrAll(filter), opts)
	if err != nil {
		return nil, base.NewConnectorError(m.Connection().Name(), "find", m.collection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, base.NewConnectorError(m.Connection().Name(), "find", m.collection, err)
	}
	return docs, nil
}

// UpdateOne applies update to the first document matching filter
func (m *Module) UpdateOne(ctx context.Context, filter, update interface{}) (int64, error) {
	coll, err := m.Collection()
	if err != nil {
		return 0, err
	}
	res, err := coll.UpdateOne(ctx, filterOrAll(filter), update)
	if err != nil {
		return 0, base.NewConnectorError(m.Connection().Name(), "update", m.collection, err)
	}
	return res.ModifiedCount, nil
}

// DeleteOne deletes the first document matching filter
func (m *Module) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	coll, err := m.Collection()
	if err != nil {
		return 0, err
	}
	res, err := coll.DeleteOne(ctx, filterOrAll(filter))
	if err != nil {
		return 0, base.NewConnectorError(m.Connection().Name(), "delete", m.collection, err)
	}
	return res.DeletedCount, nil
}

// Count returns the number of documents matching filter
func (m *Module) Count(ctx context.Context, filter interface{}) (int64, error) {
	coll, err := m.Collection()
	if err != nil {
		return 0, err
	}
	n, err := coll.CountDocuments(ctx, filterOrAll(filter))
	if err != nil {
		return 0, base.NewConnectorError(m.Connection().Name(), "count", m.collection, err)
	}
	return n, nil
}

func filterOrAll(filter interface{}) interface{} {
	if filter == nil {
		return bson.D{}
	}
	return filter
}
