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

package modules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storebind/connectors/base"
	"storebind/shared/logger"
)

type stubModule struct {
	BaseModule
	opts base.Options
}

func stubConstructor(h *base.Handle, entity string, schema Schema, opts base.Options) (Module, error) {
	return &stubModule{BaseModule: NewBaseModule("stub", entity, h, schema), opts: opts}, nil
}

func newTable(t *testing.T) *ConstructorTable {
	t.Helper()
	table := NewConstructorTable()
	require.NoError(t, table.Register("stub", stubConstructor))
	return table
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDiscover_BuildsCatalog(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "user.module.yaml", "name: User\nblueprint: stub\noptions:\n  collection: people\n")
	writeFile(t, root, "nested/log.module.yaml", "name: Log\nblueprint: STUB\n")
	writeFile(t, root, "README.md", "not a module")
	writeFile(t, root, "other.yaml", "name: Other\nblueprint: stub\n")

	catalog, err := Discover(context.Background(), root, newTable(t), logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, 2, catalog.Len())
	assert.ElementsMatch(t, []string{"user", "log"}, catalog.Names())

	user, ok := catalog.Lookup("USER")
	require.True(t, ok)
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, "stub", user.Kind)
	assert.Equal(t, "people", user.Options.GetString("collection", ""))

	_, ok = catalog.Lookup("other")
	assert.False(t, ok, "files without the definition suffix are ignored")
}

func TestDiscover_DuplicateNameLastScannedWins(t *testing.T) {
	root := t.TempDir()
	first := writeFile(t, root, "a/user.module.yaml", "name: User\nblueprint: stub\ndescription: first\n")
	second := writeFile(t, root, "b/user.module.yaml", "name: user\nblueprint: stub\ndescription: second\n")

	log, rec := logger.NewRecorder("discovery")
	catalog, err := Discover(context.Background(), root, newTable(t), log)
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.Len())
	bp, ok := catalog.Lookup("user")
	require.True(t, ok)
	assert.Equal(t, second, bp.Source)
	assert.Equal(t, "second", bp.Description)

	warnings := 0
	for _, e := range rec.Entries() {
		if e.Level == logger.WARN && e.Fields["replaced"] == first && e.Fields["replacement"] == second {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings, "warning must name both files")
}

func TestDiscover_BadFilesAreSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a_broken.module.yaml", "name: [unterminated\n")
	writeFile(t, root, "b_noname.module.yaml", "blueprint: stub\n")
	writeFile(t, root, "c_unknown.module.yaml", "name: Ghost\nblueprint: nosuch\n")
	writeFile(t, root, "d_good.module.yaml", "name: Good\nblueprint: stub\n")

	log, rec := logger.NewRecorder("discovery")
	catalog, err := Discover(context.Background(), root, newTable(t), log)
	require.NoError(t, err)

	assert.Equal(t, []string{"good"}, catalog.Names())
	assert.Equal(t, 3, rec.Count(logger.ERROR, "Skipping module definition"))
}

func TestDiscover_MissingRoot(t *testing.T) {
	catalog, err := Discover(context.Background(), filepath.Join(t.TempDir(), "absent"), newTable(t), logger.Nop())
	assert.Error(t, err)
	require.NotNil(t, catalog)
	assert.Equal(t, 0, catalog.Len())
}

func TestLoadDefinition_Errors(t *testing.T) {
	root := t.TempDir()

	_, err := LoadDefinition(filepath.Join(root, "missing.module.yaml"))
	assert.Error(t, err)

	path := writeFile(t, root, "x.module.yaml", "name: X\n")
	_, err = LoadDefinition(path)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestConstructorTable(t *testing.T) {
	table := NewConstructorTable()
	require.NoError(t, table.Register("Document", stubConstructor))
	assert.Error(t, table.Register("document", stubConstructor))
	assert.Panics(t, func() { table.MustRegister("DOCUMENT", stubConstructor) })

	_, ok := table.Lookup("document")
	assert.True(t, ok)
	_, ok = table.Lookup("table")
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())
}

func TestBlueprint_Instantiate(t *testing.T) {
	h := base.NewHandle(base.NewConnectorConfig("main", "mem://a", nil), nil)
	bp := &Blueprint{Name: "User", Options: base.Options{"collection": "people"}, New: stubConstructor}

	m, err := bp.Instantiate(h, "User", Schema{"fields": map[string]interface{}{"email": "string"}})
	require.NoError(t, err)

	assert.Equal(t, "User", m.Entity())
	assert.Same(t, h, m.Connection())
	assert.Equal(t, map[string]string{"email": "string"}, m.Schema().Fields())
	assert.Equal(t, "people", m.(*stubModule).opts.GetString("collection", ""))
}

func TestBlueprint_InstantiateWithRecordOptions(t *testing.T) {
	h := base.NewHandle(base.NewConnectorConfig("main", "mem://a", nil), nil)
	bp := &Blueprint{Name: "User", Options: base.Options{"collection": "people", "ttl": 5}, New: stubConstructor}

	m, err := bp.InstantiateWith(h, "User", nil, base.Options{"collection": "staff"})
	require.NoError(t, err)

	opts := m.(*stubModule).opts
	assert.Equal(t, "staff", opts.GetString("collection", ""))
	assert.Equal(t, 5, opts.GetInt("ttl", 0))
	// The blueprint keeps its own options
	assert.Equal(t, "people", bp.Options.GetString("collection", ""))
}

func TestBlueprint_InstantiateErrors(t *testing.T) {
	h := base.NewHandle(base.NewConnectorConfig("main", "mem://a", nil), nil)

	_, err := (&Blueprint{Name: "Empty"}).Instantiate(h, "X", nil)
	assert.Error(t, err)

	boom := errors.New("boom")
	failing := NewBlueprint("Failing", func(*base.Handle, string, Schema, base.Options) (Module, error) {
		return nil, boom
	})
	_, err = failing.Instantiate(h, "X", nil)
	assert.ErrorIs(t, err, boom)
}

func TestCatalog_NilSafe(t *testing.T) {
	var c *Catalog
	_, ok := c.Lookup("x")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Names())
}
