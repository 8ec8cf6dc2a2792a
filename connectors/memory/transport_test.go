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

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storebind/connectors/base"
	"storebind/shared/logger"
)

func newTransport(t *testing.T, uri string, opts base.Options) *Transport {
	t.Helper()
	tr, err := New(base.NewConnectorConfig("test", uri, opts), logger.Nop())
	require.NoError(t, err)
	return tr
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"host form", "mem://a", false},
		{"opaque form", "mem:a", false},
		{"missing store", "mem://", true},
		{"unparseable", "mem://%zz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(base.NewConnectorConfig("x", tt.uri, nil), logger.Nop())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransport_Lifecycle(t *testing.T) {
	tr := newTransport(t, "mem://a", nil)
	ctx := context.Background()

	assert.Equal(t, "a", tr.Store())
	assert.Equal(t, TransportType, tr.Type())
	assert.ErrorIs(t, tr.Ping(ctx), base.ErrNotConnected)

	require.NoError(t, tr.Dial(ctx))
	assert.NoError(t, tr.Ping(ctx))

	require.NoError(t, tr.Set("users", "1", "ada"))
	v, ok, err := tr.Get("users", "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ada", v)

	keys, err := tr.Keys("users")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, keys)

	existed, err := tr.Delete("users", "1")
	require.NoError(t, err)
	assert.True(t, existed)

	require.NoError(t, tr.Close(ctx))
	_, _, err = tr.Get("users", "1")
	assert.ErrorIs(t, err, base.ErrNotConnected)

	assert.Equal(t, 1, tr.Dials())
	assert.Equal(t, 1, tr.Closes())
}

func TestTransport_FailureParams(t *testing.T) {
	ctx := context.Background()

	failDial := newTransport(t, "mem://a?fail_dial=true", nil)
	assert.ErrorIs(t, failDial.Dial(ctx), ErrDialRefused)

	failClose := newTransport(t, "mem://a", base.Options{"fail_close": true})
	require.NoError(t, failClose.Dial(ctx))
	assert.ErrorIs(t, failClose.Close(ctx), ErrCloseFailed)
}

func TestTransport_DialDelayHonoursContext(t *testing.T) {
	tr := newTransport(t, "mem://a?dial_delay_ms=5000", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Dial(ctx), context.DeadlineExceeded)
}

func TestTransport_CloseDelay(t *testing.T) {
	tr := newTransport(t, "mem://a?close_delay_ms=50", nil)
	require.NoError(t, tr.Dial(context.Background()))

	start := time.Now()
	require.NoError(t, tr.Close(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1, tr.Closes())
}

func TestTransport_Drop(t *testing.T) {
	tr := newTransport(t, "mem://a", nil)
	require.NoError(t, tr.Dial(context.Background()))

	var got error
	tr.OnLoss(func(err error) { got = err })

	cause := errors.New("gone")
	tr.Drop(cause)
	assert.Equal(t, cause, got)
	assert.ErrorIs(t, tr.Ping(context.Background()), base.ErrNotConnected)
}
