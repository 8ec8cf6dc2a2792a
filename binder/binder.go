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

package binder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"storebind/connectors/base"
	"storebind/connectors/config"
	"storebind/modules"
	"storebind/shared/logger"
)

// ConnectionProvider hands out connections by name, creating them on first use
type ConnectionProvider interface {
	GetOrCreateConnection(ctx context.Context, name, uri string, opts base.Options) (*base.Handle, bool)
}

// Target receives bound modules. Register must store m under both names or
// neither.
type Target interface {
	Register(scoped, property string, m modules.Module) error
}

// Binding describes one module that was bound
type Binding struct {
	Record     string
	Connection string
	Entity     string
	Blueprint  string
	Scoped     string
	Property   string
}

// Skip describes one record that was not bound
type Skip struct {
	Record  string
	Outcome string
	Reason  string
}

// Report is the result of one binding pass
type Report struct {
	Bound   []Binding
	Skipped []Skip
}

// Binder turns configuration records into module instances
type Binder struct {
	conns   ConnectionProvider
	logger  *logger.Logger
	metrics *metrics
}

// New creates a binder. A nil reg leaves the metrics unregistered.
func New(conns ConnectionProvider, log *logger.Logger, reg prometheus.Registerer) *Binder {
	if log == nil {
		log = logger.New("binder")
	}
	return &Binder{conns: conns, logger: log, metrics: newMetrics(reg)}
}

// ScopedName returns the connection-qualified registration name
func ScopedName(connection, entity string) string {
	return connection + "." + entity
}

// Bind processes cfg.Records in order. Blueprints come from the record
// itself in lib mode and from catalog otherwise. A record that cannot be
// bound is logged and reported; it never stops the pass.
func (b *Binder) Bind(ctx context.Context, cfg *config.AppConfig, catalog *modules.Catalog, target Target) *Report {
	start := time.Now()
	report := &Report{}

	for i := range cfg.Records {
		if ctx.Err() != nil {
			break
		}
		rec := &cfg.Records[i]
		if binding, skip := b.bindRecord(ctx, cfg, rec, catalog, target); skip != nil {
			report.Skipped = append(report.Skipped, *skip)
			b.metrics.record(skip.Outcome)
		} else {
			report.Bound = append(report.Bound, *binding)
			b.metrics.record(OutcomeBound)
		}
	}

	b.logger.InfoWithDuration("Binding pass complete", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"records": len(cfg.Records),
		"bound":   len(report.Bound),
		"skipped": len(report.Skipped),
	})
	return report
}

func (b *Binder) bindRecord(ctx context.Context, cfg *config.AppConfig, rec *config.Record, catalog *modules.Catalog, target Target) (*Binding, *Skip) {
	connName := cfg.ConnectionName(rec)
	fields := map[string]interface{}{
		"record":     rec.Name,
		"connection": connName,
		"entity":     rec.Entity,
	}

	if err := rec.Validate(); err != nil {
		fields["error"] = err.Error()
		b.logger.Warn("Invalid record, skipping", fields)
		return nil, &Skip{Record: rec.Name, Outcome: OutcomeInvalidRecord, Reason: err.Error()}
	}

	uri := cfg.ConnectionURI(rec)
	if uri == "" {
		b.logger.Warn("No connection URI for record, skipping", fields)
		return nil, &Skip{Record: rec.Name, Outcome: OutcomeNoURI, Reason: "no uri and no global uri"}
	}

	h, ok := b.conns.GetOrCreateConnection(ctx, connName, uri, cfg.ConnectionOptions(rec))
	if !ok {
		// The registry has already logged why
		return nil, &Skip{Record: rec.Name, Outcome: OutcomeNoConnection, Reason: "connection could not be created"}
	}

	bp := b.resolveBlueprint(cfg, rec, catalog)
	if bp == nil {
		fields["blueprint"] = rec.BlueprintRef
		b.logger.Warn("Blueprint not found for record, skipping", fields)
		return nil, &Skip{Record: rec.Name, Outcome: OutcomeNoBlueprint, Reason: fmt.Sprintf("blueprint %q not found", rec.BlueprintRef)}
	}
	fields["blueprint"] = bp.Name

	var recOpts base.Options
	if !cfg.UseGlobalURI {
		recOpts = rec.Options
	}
	m, err := bp.InstantiateWith(h, rec.Entity, modules.Schema(rec.Schema), recOpts)
	if err != nil {
		b.logger.ErrorWithErr("Failed to instantiate module", err, fields)
		return nil, &Skip{Record: rec.Name, Outcome: OutcomeConstructorFailed, Reason: err.Error()}
	}

	scoped := ScopedName(connName, rec.Entity)
	if err := target.Register(scoped, rec.Entity, m); err != nil {
		b.logger.ErrorWithErr("Failed to register module", err, fields)
		return nil, &Skip{Record: rec.Name, Outcome: OutcomeRegisterFailed, Reason: err.Error()}
	}
	h.BindEntity(rec.Entity)

	b.logger.Debug("Module bound", fields)
	return &Binding{
		Record:     rec.Name,
		Connection: connName,
		Entity:     rec.Entity,
		Blueprint:  bp.Name,
		Scoped:     scoped,
		Property:   rec.Entity,
	}, nil
}

func (b *Binder) resolveBlueprint(cfg *config.AppConfig, rec *config.Record, catalog *modules.Catalog) *modules.Blueprint {
	if cfg.LibMode {
		return rec.Blueprint
	}
	if rec.BlueprintRef == "" {
		return nil
	}
	bp, _ := catalog.Lookup(strings.ToLower(rec.BlueprintRef))
	return bp
}
