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

package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"sync"
)

// Recorder is an io.Writer that keeps every JSON log line written to it.
// Tests use it to assert on warnings and errors.
type Recorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewRecorder returns a logger for component writing into a fresh Recorder
func NewRecorder(component string) (*Logger, *Recorder) {
	rec := &Recorder{}
	l := NewWithWriter(component, rec)
	l.SetLevel(DEBUG)
	return l, rec
}

func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// String returns the raw output
func (r *Recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

// Entries decodes every line written so far. Lines that are not JSON are skipped.
func (r *Recorder) Entries() []LogEntry {
	r.mu.Lock()
	data := append([]byte(nil), r.buf.Bytes()...)
	r.mu.Unlock()

	var entries []LogEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

// Count returns how many entries have the given level and contain substr in their message
func (r *Recorder) Count(level LogLevel, substr string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}

// Has reports whether at least one matching entry exists
func (r *Recorder) Has(level LogLevel, substr string) bool {
	return r.Count(level, substr) > 0
}
