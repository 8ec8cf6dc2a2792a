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

package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storebind/binder"
	"storebind/connectors/base"
	"storebind/connectors/config"
	"storebind/connectors/factory"
	"storebind/connectors/memory"
	"storebind/modules"
	"storebind/modules/keyvalue"
	"storebind/shared/logger"
)

const twoStoreConfig = `
version: "1.0"
modules_path: %s
records:
  - name: main
    uri: store://a
    entity: User
    blueprint: user
  - name: logs
    uri: store://b
    entity: Log
    blueprint: log
`

// testFactory maps the store:// scheme onto the memory transport
func testFactory(log *logger.Logger) *factory.Factory {
	f := factory.New(log)
	f.RegisterOrReplace("store", func(cfg *base.ConnectorConfig, l *logger.Logger) (base.Transport, error) {
		return memory.New(cfg, l)
	})
	return f
}

type fixture struct {
	app        *App
	configPath string
	modulesDir string
	recorder   *logger.Recorder
	metrics    *prometheus.Registry
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	modulesDir := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(modulesDir, 0o755))
	writeFile(t, filepath.Join(modulesDir, "user.module.yaml"), "name: User\nblueprint: keyvalue\n")
	writeFile(t, filepath.Join(modulesDir, "log.module.yaml"), "name: Log\nblueprint: keyvalue\n")

	configPath := filepath.Join(dir, "storebind.yaml")
	writeFile(t, configPath, fmt.Sprintf(twoStoreConfig, modulesDir))

	log, rec := logger.NewRecorder("app")
	metrics := prometheus.NewRegistry()
	a, err := New(Options{
		Source:     config.NewFileSource(configPath),
		Factory:    testFactory(log),
		Logger:     log,
		Registerer: metrics,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	return &fixture{app: a, configPath: configPath, modulesDir: modulesDir, recorder: rec, metrics: metrics}
}

func waitConnected(t *testing.T, h *base.Handle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.WaitConnected(ctx))
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestStart_BindsTwoConnections(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, StateUninitialized, fx.app.State())
	require.NoError(t, fx.app.Start(ctx))
	assert.Equal(t, StateReady, fx.app.State())

	assert.Equal(t, []string{"main", "logs"}, fx.app.Registry().ConnectionNames())
	assert.Equal(t, []string{"main.User", "User", "logs.Log", "Log"}, fx.app.Modules())
	assert.Equal(t, []string{"log", "user"}, fx.app.Blueprints())

	user, ok := fx.app.Module("User")
	require.True(t, ok)
	scoped, ok := fx.app.Module("main.User")
	require.True(t, ok)
	assert.Same(t, user, scoped)
	assert.Equal(t, "main", user.Connection().Name())

	kv, ok := Lookup[*keyvalue.Module](fx.app, "Log")
	require.True(t, ok)
	assert.Equal(t, "logs", kv.Connection().Name())

	_, ok = fx.app.Module("Order")
	assert.False(t, ok)

	// The bound module works once its connection is up
	waitConnected(t, kv.Connection())
	require.NoError(t, kv.Set(ctx, "1", map[string]string{"msg": "started"}))
	var got map[string]string
	found, err := kv.Get(ctx, "1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "started", got["msg"])

	details := fx.app.Registry().ConnectionDetails()
	require.Len(t, details, 2)
	assert.Equal(t, []string{"User"}, details[0].BoundEntities)

	infos := fx.app.ModuleInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, ModuleInfo{Name: "logs.Log", Property: "Log", Entity: "Log", Blueprint: "keyvalue", Connection: "logs"}, infos[0])

	report := fx.app.LastReport()
	assert.Len(t, report.Bound, 2)
	assert.Empty(t, report.Skipped)
}

func TestStart_MissingConfigIsFatal(t *testing.T) {
	a, err := New(Options{
		Source: config.NewFileSource(filepath.Join(t.TempDir(), "missing.yaml")),
		Logger: logger.Nop(),
	})
	require.NoError(t, err)

	err = a.Start(context.Background())
	assert.ErrorIs(t, err, config.ErrConfigNotFound)
	assert.Equal(t, StateUninitialized, a.State())
	assert.Empty(t, a.Modules())
	assert.Equal(t, 0, a.Registry().ActiveConnectionCount())
}

func TestStart_Twice(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.app.Start(context.Background()))
	assert.ErrorIs(t, fx.app.Start(context.Background()), ErrAlreadyStarted)
}

func TestStart_MissingModulesPathIsNotFatal(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, os.RemoveAll(fx.modulesDir))

	require.NoError(t, fx.app.Start(context.Background()))
	assert.Equal(t, StateReady, fx.app.State())
	assert.Empty(t, fx.app.Modules())
	assert.True(t, fx.recorder.Has(logger.ERROR, "Module discovery failed"))
	assert.Len(t, fx.app.LastReport().Skipped, 2)
}

func TestStart_RecordWithoutBlueprintIsSkipped(t *testing.T) {
	fx := newFixture(t)
	writeFile(t, fx.configPath, fmt.Sprintf(`
version: "1.0"
modules_path: %s
records:
  - name: main
    uri: store://a
    entity: User
    blueprint: user
  - name: logs
    uri: store://b
    entity: Log
`, fx.modulesDir))

	require.NoError(t, fx.app.Start(context.Background()))
	assert.Equal(t, StateReady, fx.app.State())
	assert.Equal(t, []string{"main.User", "User"}, fx.app.Modules())
	assert.Equal(t, []string{"main"}, fx.app.Registry().ConnectionNames())

	report := fx.app.LastReport()
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "logs", report.Skipped[0].Record)
	assert.Equal(t, binder.OutcomeInvalidRecord, report.Skipped[0].Outcome)
	assert.True(t, fx.recorder.Has(logger.WARN, "Invalid record"))
}

func TestReload_RecordWithoutEntityIsSkipped(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.app.Start(ctx))

	writeFile(t, fx.configPath, fmt.Sprintf(`
version: "1.0"
modules_path: %s
records:
  - name: main
    uri: store://a
    entity: User
    blueprint: user
  - name: logs
    uri: store://b
    blueprint: log
`, fx.modulesDir))

	require.NoError(t, fx.app.Reload(ctx))
	assert.Equal(t, []string{"main.User", "User"}, fx.app.Modules())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.app.reloads.WithLabelValues("success")))
}

func TestReload_KeepsConnectionsAndReplacesModules(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.app.Start(ctx))

	before, _ := fx.app.Module("User")
	handleBefore, _ := fx.app.Registry().GetConnection("main")
	waitConnected(t, handleBefore)

	require.NoError(t, fx.app.Reload(ctx))
	assert.Equal(t, StateReady, fx.app.State())

	after, ok := fx.app.Module("User")
	require.True(t, ok)
	assert.NotSame(t, before, after)

	handleAfter, ok := fx.app.Registry().GetConnection("main")
	require.True(t, ok)
	assert.Same(t, handleBefore, handleAfter)
	assert.Equal(t, handleBefore.ID(), handleAfter.ID())
	assert.Same(t, handleAfter, after.Connection())

	// Not dialled again
	assert.Equal(t, 1, handleAfter.Transport().(*memory.Transport).Dials())
	// Entities are recorded once per pass
	assert.Equal(t, []string{"User"}, handleAfter.BoundEntities())

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.app.reloads.WithLabelValues("success")))
}

func TestReload_PicksUpConfigChanges(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.app.Start(ctx))

	writeFile(t, fx.configPath, fmt.Sprintf(`
version: "1.0"
modules_path: %s
records:
  - name: main
    uri: store://a
    entity: User
    blueprint: user
  - name: audit
    uri: store://c
    entity: Log
    blueprint: log
`, fx.modulesDir))

	require.NoError(t, fx.app.Reload(ctx))

	assert.Equal(t, []string{"main.User", "User", "audit.Log", "Log"}, fx.app.Modules())
	_, ok := fx.app.Module("logs.Log")
	assert.False(t, ok)

	// The old connection is left open; reload never closes connections
	assert.Equal(t, []string{"main", "logs", "audit"}, fx.app.Registry().ConnectionNames())
}

func TestReload_ConfigFailureKeepsModules(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.app.Start(ctx))
	before, _ := fx.app.Module("User")

	require.NoError(t, os.Remove(fx.configPath))

	err := fx.app.Reload(ctx)
	assert.ErrorIs(t, err, config.ErrConfigNotFound)
	assert.Equal(t, StateReady, fx.app.State())

	after, ok := fx.app.Module("User")
	require.True(t, ok)
	assert.Same(t, before, after)
	assert.True(t, fx.recorder.Has(logger.ERROR, "Reload aborted"))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.app.reloads.WithLabelValues("failed")))
}

func TestReload_BeforeStart(t *testing.T) {
	fx := newFixture(t)
	assert.ErrorIs(t, fx.app.Reload(context.Background()), ErrNotReady)
}

func TestLibMode_UsesEmbeddedBlueprints(t *testing.T) {
	log := logger.Nop()
	src := config.NewStaticSource(&config.AppConfig{
		Version: "1.0",
		LibMode: true,
		// Ignored in lib mode
		ModulesPath: "/does/not/exist",
		Records: []config.Record{
			{Name: "main", URI: "store://a", Entity: "User", Blueprint: modules.NewBlueprint("user", keyvalue.New)},
		},
	})
	a, err := New(Options{Source: src, Factory: testFactory(log), Logger: log})
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	require.NoError(t, a.Start(context.Background()))
	assert.Empty(t, a.Blueprints())

	m, ok := Lookup[*keyvalue.Module](a, "main.User")
	require.True(t, ok)
	assert.Equal(t, "User", m.Entity())
}

func TestLookup_WrongType(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.app.Start(context.Background()))

	type other struct{ modules.BaseModule }
	_, ok := Lookup[*other](fx.app, "User")
	assert.False(t, ok)
}

func TestShutdown_ClosesOnce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.app.Start(ctx))

	h, _ := fx.app.Registry().GetConnection("main")
	waitConnected(t, h)
	tr := h.Transport().(*memory.Transport)

	require.NoError(t, fx.app.Shutdown(ctx))
	require.NoError(t, fx.app.Shutdown(ctx))

	assert.Equal(t, 1, tr.Closes())
	assert.Equal(t, 0, fx.app.Registry().ActiveConnectionCount())
	assert.Equal(t, base.StateDisconnected, h.State())

	assert.ErrorIs(t, fx.app.Reload(ctx), ErrShutdown)
	assert.ErrorIs(t, fx.app.Start(ctx), ErrShutdown)
}

func TestModuleTable_RegisterIsAtomic(t *testing.T) {
	table := newModuleTable()
	h := base.NewHandle(base.NewConnectorConfig("main", "store://a", nil), nil)
	m := &stub{BaseModule: modules.NewBaseModule("stub", "User", h, nil)}

	assert.Error(t, table.Register("main.User", "bad name", m))
	assert.Equal(t, 0, table.len())
	assert.Error(t, table.Register("", "User", m))
	assert.Error(t, table.Register("main.User", "User", nil))

	require.NoError(t, table.Register("main.User", "User", m))
	m2 := &stub{BaseModule: modules.NewBaseModule("stub", "User", h, nil)}
	require.NoError(t, table.Register("other.User", "User", m2))

	// Last registration wins, first position is kept
	assert.Equal(t, []string{"main.User", "User", "other.User"}, table.names())
	got, _ := table.get("User")
	assert.Same(t, m2, got)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading_config", StateLoadingConfig.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "state(9)", State(9).String())
}

type stub struct {
	modules.BaseModule
}
