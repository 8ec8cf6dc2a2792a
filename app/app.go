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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"storebind/binder"
	"storebind/connectors/config"
	"storebind/connectors/factory"
	"storebind/connectors/registry"
	"storebind/modules"
	"storebind/modules/builtin"
	"storebind/shared/logger"
)

// State is the application lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateLoadingConfig
	StateBinding
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoadingConfig:
		return "loading_config"
	case StateBinding:
		return "binding"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotReady is returned by Reload before Start has completed
	ErrNotReady = errors.New("application is not ready")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("application already started")
	// ErrShutdown is returned by Start and Reload after Shutdown
	ErrShutdown = errors.New("application is shut down")
)

// Options configures an App. Only Source is required.
type Options struct {
	Source       config.Source
	Factory      registry.TransportFactory // default: factory.NewDefault
	Constructors *modules.ConstructorTable // default: builtin.NewTable
	Logger       *logger.Logger            // default: logger.New("app")
	Registerer   prometheus.Registerer     // nil disables metrics registration
}

// App is the composition root. It owns the connection registry and the
// module table and drives discovery and binding.
type App struct {
	source       config.Source
	constructors *modules.ConstructorTable
	registry     *registry.Registry
	binder       *binder.Binder
	logger       *logger.Logger
	reloads      *prometheus.CounterVec

	// lifecycle serialises Start, Reload and Shutdown
	lifecycle sync.Mutex

	mu      sync.RWMutex
	state   State
	cfg     *config.AppConfig
	catalog *modules.Catalog
	modules *moduleTable
	report  *binder.Report
	closed  bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an application in state Uninitialized
func New(opts Options) (*App, error) {
	if opts.Source == nil {
		return nil, errors.New("config source is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("app")
	}
	f := opts.Factory
	if f == nil {
		f = factory.NewDefault(log.Named("factory"))
	}
	ctors := opts.Constructors
	if ctors == nil {
		ctors = builtin.NewTable()
	}

	reloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storebind_reloads_total",
			Help: "Reload attempts by result",
		},
		[]string{"result"},
	)
	if opts.Registerer != nil {
		opts.Registerer.MustRegister(reloads)
	}

	reg := registry.NewRegistry(f, log.Named("registry"), opts.Registerer)
	return &App{
		source:       opts.Source,
		constructors: ctors,
		registry:     reg,
		binder:       binder.New(reg, log.Named("binder"), opts.Registerer),
		logger:       log,
		reloads:      reloads,
		modules:      newModuleTable(),
	}, nil
}

// Registry returns the connection registry
func (a *App) Registry() *registry.Registry { return a.registry }

// State returns the lifecycle state
func (a *App) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *App) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Config returns the configuration in effect, or nil before Start
func (a *App) Config() *config.AppConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// LastReport returns the report of the most recent binding pass
func (a *App) LastReport() *binder.Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.report
}

// Start loads the configuration, discovers blueprints and binds every
// record. A configuration failure is returned and leaves the app
// Uninitialized; per-record failures are logged and reported only.
func (a *App) Start(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.RLock()
	state, closed := a.state, a.closed
	a.mu.RUnlock()
	if closed {
		return ErrShutdown
	}
	if state != StateUninitialized {
		return ErrAlreadyStarted
	}

	start := time.Now()
	a.setState(StateLoadingConfig)
	cfg, err := a.source.Load(ctx)
	if err != nil {
		a.setState(StateUninitialized)
		a.logger.ErrorWithErr("Failed to load configuration", err, nil)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	a.setState(StateBinding)
	a.bind(ctx, cfg)
	a.setState(StateReady)

	a.logger.InfoWithDuration("Application ready", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"modules":     a.modules.len(),
		"connections": a.registry.ActiveConnectionCount(),
		"lib_mode":    cfg.LibMode,
	})
	return nil
}

// Reload re-reads the configuration and rebuilds every module. Connections
// are kept and reused by name. If the configuration cannot be loaded the
// current modules stay in place and the error is returned.
func (a *App) Reload(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.RLock()
	state, closed := a.state, a.closed
	a.mu.RUnlock()
	if closed {
		return ErrShutdown
	}
	if state != StateReady {
		return ErrNotReady
	}

	start := time.Now()
	a.setState(StateLoadingConfig)
	cfg, err := a.source.Load(ctx)
	if err != nil {
		a.setState(StateReady)
		a.reloads.WithLabelValues("failed").Inc()
		a.logger.ErrorWithErr("Reload aborted, keeping current modules", err, nil)
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	a.setState(StateBinding)
	a.registry.ClearBindings()
	a.bind(ctx, cfg)
	a.setState(StateReady)
	a.reloads.WithLabelValues("success").Inc()

	a.logger.InfoWithDuration("Reload complete", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"modules":     a.modules.len(),
		"connections": a.registry.ActiveConnectionCount(),
	})
	return nil
}

// bind runs discovery (unless in lib mode) and a binding pass into a fresh
// module table, then swaps it in.
func (a *App) bind(ctx context.Context, cfg *config.AppConfig) {
	catalog := modules.NewCatalog()
	if !cfg.LibMode && cfg.ModulesPath != "" {
		discovered, err := modules.Discover(ctx, cfg.ModulesPath, a.constructors, a.logger.Named("discovery"))
		if err != nil {
			a.logger.ErrorWithErr("Module discovery failed", err, map[string]interface{}{
				"modules_path": cfg.ModulesPath,
			})
		}
		catalog = discovered
	}

	table := newModuleTable()
	report := a.binder.Bind(ctx, cfg, catalog, table)

	a.mu.Lock()
	a.cfg = cfg
	a.catalog = catalog
	a.modules = table
	a.report = report
	a.mu.Unlock()
}

func (a *App) table() *moduleTable {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.modules
}

// Module returns the module registered under a property name ("User") or
// a scoped name ("main.User").
func (a *App) Module(name string) (modules.Module, bool) {
	return a.table().get(name)
}

// Modules returns every registration name in insertion order
func (a *App) Modules() []string {
	return a.table().names()
}

// ModuleInfos describes the bound modules, one entry per scoped name
func (a *App) ModuleInfos() []ModuleInfo {
	return a.table().infos()
}

// Blueprints returns the names in the current discovery catalog
func (a *App) Blueprints() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.catalog.Names()
}

// Lookup returns the module registered under name asserted to T
func Lookup[T modules.Module](a *App, name string) (T, bool) {
	var zero T
	m, ok := a.Module(name)
	if !ok {
		return zero, false
	}
	t, ok := m.(T)
	return t, ok
}

// Shutdown closes every connection. Only the first call does any work;
// later calls return the first call's result.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.lifecycle.Lock()
		defer a.lifecycle.Unlock()

		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()

		a.logger.Info("Shutting down, closing all connections", map[string]interface{}{
			"connections": a.registry.ActiveConnectionCount(),
		})
		a.shutdownErr = a.registry.CloseAll(ctx)
		if a.shutdownErr != nil {
			a.logger.ErrorWithErr("Shutdown completed with errors", a.shutdownErr, nil)
		}
	})
	return a.shutdownErr
}
