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

package registry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the registry's Prometheus collectors
type Metrics struct {
	active        prometheus.Gauge
	events        *prometheus.CounterVec
	closeFailures prometheus.Counter
}

// NewMetrics creates the registry collectors and registers them with reg.
// A nil reg leaves the collectors unregistered, which keeps tests and
// embedded hosts free of global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storebind_connections_active",
			Help: "Number of connection handles held by the registry",
		}),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storebind_connection_events_total",
				Help: "Connection lifecycle events by type",
			},
			[]string{"event"},
		),
		closeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storebind_connection_close_failures_total",
			Help: "Connection closes whose transport returned an error",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.active, m.events, m.closeFailures)
	}
	return m
}

func (m *Metrics) setActive(n int) {
	m.active.Set(float64(n))
}

func (m *Metrics) event(name string) {
	m.events.WithLabelValues(name).Inc()
}

func (m *Metrics) closeFailed() {
	m.closeFailures.Inc()
}
