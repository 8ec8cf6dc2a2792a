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

// Package table provides a blueprint that binds an entity to a SQL table
// on a PostgreSQL or MySQL connection.
package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"storebind/connectors/base"
	"storebind/connectors/sqldb"
	"storebind/modules"
)

// Kind is the constructor identifier
const Kind = "table"

// DefaultPrimaryKey is used when the "primary_key" option is not set
const DefaultPrimaryKey = "id"

// Module reads rows of one table
type Module struct {
	modules.BaseModule
	transport  *sqldb.Transport
	table      string
	primaryKey string
}

// New is the table constructor. The table name comes from the "table"
// option, defaulting to the lower-cased entity name plus "s".
func New(h *base.Handle, entity string, schema modules.Schema, opts base.Options) (modules.Module, error) {
	t, ok := modules.Transport[*sqldb.Transport](h)
	if !ok {
		return nil, fmt.Errorf("table blueprint needs a postgres or mysql connection, got %s", h.Type())
	}
	name := opts.GetString("table", defaultTableName(entity))
	if name == "" {
		return nil, errors.New("table name must not be empty")
	}
	return &Module{
		BaseModule: modules.NewBaseModule(Kind, entity, h, schema),
		transport:  t,
		table:      name,
		primaryKey: opts.GetString("primary_key", DefaultPrimaryKey),
	}, nil
}

func defaultTableName(entity string) string {
	name := strings.ToLower(entity)
	if strings.HasSuffix(name, "s") {
		return name
	}
	return name + "s"
}

// Table returns the bound table name
func (m *Module) Table() string { return m.table }

// PrimaryKey returns the primary key column
func (m *Module) PrimaryKey() string { return m.primaryKey }

func (m *Module) db() (*sql.DB, error) {
	db := m.transport.DB()
	if db == nil {
		return nil, base.ErrNotConnected
	}
	return db, nil
}

func (m *Module) quote(ident string) string {
	if m.transport.Dialect() == sqldb.TypeMySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(ident)
}

func (m *Module) placeholder(n int) string {
	if m.transport.Dialect() == sqldb.TypeMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// Count returns the number of rows in the table
func (m *Module) Count(ctx context.Context) (int64, error) {
	db, err := m.db()
	if err != nil {
		return 0, err
	}
	var n int64
	query := "SELECT COUNT(*) FROM " + m.quote(m.table)
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, base.NewConnectorError(m.Connection().Name(), "count", m.table, err)
	}
	return n, nil
}

// Exists reports whether a row with the given primary key exists
func (m *Module) Exists(ctx context.Context, id interface{}) (bool, error) {
	db, err := m.db()
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s LIMIT 1",
		m.quote(m.table), m.quote(m.primaryKey), m.placeholder(1))

	var one int
	err = db.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, base.NewConnectorError(m.Connection().Name(), "exists", m.table, err)
	}
	return true, nil
}

// FindByID returns the row with the given primary key as a column map, or
// nil when there is none.
func (m *Module) FindByID(ctx context.Context, id interface{}) (map[string]interface{}, error) {
	db, err := m.db()
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		m.quote(m.table), m.quote(m.primaryKey), m.placeholder(1))

	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, base.NewConnectorError(m.Connection().Name(), "find", m.table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, base.NewConnectorError(m.Connection().Name(), "find", m.table, err)
		}
		return nil, nil
	}
	row, err := scanRow(rows)
	if err != nil {
		return nil, base.NewConnectorError(m.Connection().Name(), "find", m.table, err)
	}
	return row, nil
}

func scanRow(rows *sql.Rows) (map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(map[string]interface{}, len(cols))
	for i, col := range cols {
		// Drivers return text columns as []byte
		if b, ok := values[i].([]byte); ok {
			row[col] = string(b)
		} else {
			row[col] = values[i]
		}
	}
	return row, nil
}
