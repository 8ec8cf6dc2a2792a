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
	"github.com/prometheus/client_golang/prometheus"
)

// Binding outcomes, used as the metric label and in Report entries
const (
	OutcomeBound             = "bound"
	OutcomeInvalidRecord     = "invalid_record"
	OutcomeNoURI             = "no_uri"
	OutcomeNoConnection      = "no_connection"
	OutcomeNoBlueprint       = "no_blueprint"
	OutcomeConstructorFailed = "constructor_failed"
	OutcomeRegisterFailed    = "register_failed"
)

type metrics struct {
	records *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storebind_binding_records_total",
				Help: "Records processed by the binder by outcome",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.records)
	}
	return m
}

func (m *metrics) record(outcome string) {
	m.records.WithLabelValues(outcome).Inc()
}
