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

package base

// State is the lifecycle state of a connection handle
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// MarshalText lets states render as names in JSON output
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event is emitted to handle observers after a state change
type Event int

const (
	// EventConnected fires when establishment succeeds.
	EventConnected Event = iota
	// EventError fires when establishment fails. The handle is left Disconnected.
	EventError
	// EventDisconnected fires when a connected or closing handle reaches
	// Disconnected, either through Close or because the transport lost its link.
	EventDisconnected
)

// String returns the string representation of the event
func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventError:
		return "error"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// transitions is the complete set of legal state changes. Any change not
// listed here is rejected with ErrInvalidTransition.
var transitions = map[State]map[State]Event{
	StateDisconnected: {
		StateConnecting: noEvent,
	},
	StateConnecting: {
		StateConnected:     EventConnected,
		StateDisconnected:  EventError,
		StateDisconnecting: noEvent,
	},
	StateConnected: {
		StateDisconnecting: noEvent,
		StateDisconnected:  EventDisconnected,
	},
	StateDisconnecting: {
		StateDisconnected: EventDisconnected,
	},
}

const noEvent Event = -1

// CanTransition reports whether a handle may move from one state to another
func CanTransition(from, to State) bool {
	_, ok := transitions[from][to]
	return ok
}

// transitionEvent returns the event emitted by a legal transition, or
// noEvent when the transition is silent.
func transitionEvent(from, to State) Event {
	if ev, ok := transitions[from][to]; ok {
		return ev
	}
	return noEvent
}
