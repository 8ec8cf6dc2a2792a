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
Package base provides the connection handle, its state machine and the
transport contract shared by every backing-store driver.

# Overview

A Handle is a named link to one backing store. It owns exactly one Transport
and moves through four states:

	Disconnected -> Connecting -> Connected -> Disconnecting -> Disconnected

The legal transitions are listed in a single table (see CanTransition).
Some transitions emit an Event to subscribed observers:

	Connecting    -> Connected      EventConnected
	Connecting    -> Disconnected   EventError (dial failed)
	Connected     -> Disconnected   EventDisconnected (link lost)
	Disconnecting -> Disconnected   EventDisconnected (closed)

# Transport Interface

Drivers implement Transport:

	type Transport interface {
	    Dial(ctx context.Context) error
	    Close(ctx context.Context) error
	    Ping(ctx context.Context) error
	    Type() string
	}

Close must be safe to call on a transport that never dialled successfully.
Transports that can detect a dropped link also implement LossNotifier.

# Opening and Closing

	h := base.NewHandle(base.NewConnectorConfig("main", uri, opts), transport)
	h.Subscribe(func(h *base.Handle, ev base.Event, err error) {
	    log.Printf("%s: %s", h.Name(), ev)
	})
	if err := h.OpenAsync(ctx); err != nil {
	    return err
	}
	if err := h.WaitConnected(ctx); err != nil {
	    return err
	}
	defer h.Close(ctx)

Dial attempts are retried with exponential backoff up to max_retries, each
bounded by connect_timeout_ms. Closing a handle that is still connecting
cancels the dial and waits for it to unwind.

# Error Handling

Handle operations return ConnectorError values that wrap the driver error:

	var connErr *base.ConnectorError
	if errors.As(err, &connErr) {
	    log.Printf("Connection: %s, Operation: %s", connErr.ConnectorName, connErr.Operation)
	}

Sentinels (ErrNotFound, ErrInvalidTransition, ErrNotConnected,
ErrUnknownScheme) are matched with errors.Is.

# Thread Safety

Handle is safe for concurrent use. Observers are invoked without any lock
held, so they may call back into the handle.
*/
package base
