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
Package registry provides a thread-safe registry of named connections to
backing stores.

# Overview

The Registry is the only owner of the name -> handle map. It handles:

  - Creating connections by name and establishing them in the background
  - Reusing an existing connection for a repeated name
  - Dropping a connection once it reaches Disconnected
  - Closing one connection, or all of them on shutdown
  - Health checking across all registered connections

# Creating a Registry

	f := factory.NewDefault(logger.New("factory"))
	reg := registry.NewRegistry(f, logger.New("registry"), prometheus.DefaultRegisterer)

# Adding Connections

	h, ok := reg.GetOrCreateConnection(ctx, "main", "mongodb://localhost:27017/app", nil)
	if !ok {
	    // transport could not be created; the error has been logged
	}
	if err := h.WaitConnected(ctx); err != nil {
	    return err
	}

AddConnection on an existing name logs a warning and does nothing. The
handle is stored in state Connecting before AddConnection returns and the
dial continues in the background. A dial failure is logged and the entry
stays, in state Disconnected, so that operators can see it. A handle that
reaches Disconnected after being connected (closed or lost) is removed.

# Concurrent GetOrCreateConnection

Two goroutines calling GetOrCreateConnection for the same absent name can
both observe it as absent. Adds are serialised by name, so the second add is
a no-op; each caller re-reads the map and gets the single stored handle, and
the transport is dialled once.

# Shutdown

	if err := reg.CloseAll(ctx); err != nil {
	    log.Printf("some connections failed to close: %v", err)
	}

CloseAll closes every handle concurrently, waits for all of them and then
empties the map, including entries whose close failed. Failures are returned
as a *multierror.Error.

# Metrics

  - storebind_connections_active: handles currently stored
  - storebind_connection_events_total{event}: connected, error, disconnected, create_failed
  - storebind_connection_close_failures_total: transport close errors
*/
package registry
