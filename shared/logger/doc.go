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

/*
Package logger provides structured JSON logging for storebind components.

# Overview

Every log entry is a single JSON line containing:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (registry, binder, discovery, app, ...)
  - Instance ID and container name
  - Custom fields

# Usage

	log := logger.New("registry")

	log.Warn("Connection already exists", map[string]interface{}{
	    "connection": "main",
	})

	log.ErrorWithErr("Failed to close connection", err, map[string]interface{}{
	    "connection": "main",
	})

Child loggers share the parent's output:

	connLog := log.With(map[string]interface{}{"connection": "main"})

# Environment Variables

  - INSTANCE_ID: Deployment instance identifier
  - LOG_LEVEL: Minimum level (debug, info, warn, error; default info)

# Testing

NewRecorder returns a logger whose output can be decoded and searched:

	log, rec := logger.NewRecorder("registry")
	// ...
	if !rec.Has(logger.WARN, "already exists") { t.Fatal("missing warning") }

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
