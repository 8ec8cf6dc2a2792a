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

package sdk

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for connection establishment
type RetryConfig struct {
	MaxRetries      int              // Maximum number of retry attempts after the first try
	InitialInterval time.Duration    // Initial wait interval
	MaxInterval     time.Duration    // Maximum wait interval
	Multiplier      float64          // Backoff multiplier
	Jitter          float64          // Jitter factor (0-1)
	RetryIf         func(error) bool // Custom retry condition
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.1,
		RetryIf:         DefaultRetryCondition,
	}
}

// DialRetryConfig returns the default configuration with the attempt count
// taken from a connection's max_retries setting. Negative values mean no retry.
func DialRetryConfig(maxRetries int) *RetryConfig {
	cfg := DefaultRetryConfig()
	if maxRetries < 0 {
		maxRetries = 0
	}
	cfg.MaxRetries = maxRetries
	cfg.MaxInterval = 5 * time.Second
	return cfg
}

// DefaultRetryCondition returns true for transient dial errors
func DefaultRetryCondition(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	// A per-attempt deadline is transient; the parent context is checked separately.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errMsg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"connection timed out",
		"i/o timeout",
		"no reachable servers",
		"server selection",
		"no connections were made",
		"temporary failure",
		"service unavailable",
		"too many connections",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}

// NonRetryableError wraps an error to indicate it should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nonRetryable *NonRetryableError
	return errors.As(err, &nonRetryable)
}

// RetryError indicates all retry attempts failed
type RetryError struct {
	Err      error
	Attempts int
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// RetryFunc is the function type that can be retried. Each attempt receives
// the caller's context.
type RetryFunc[T any] func(ctx context.Context) (T, error)

// RetryWithBackoff executes fn with exponential backoff until it succeeds,
// returns a non-retryable error, the attempts run out, or ctx is done.
func RetryWithBackoff[T any](ctx context.Context, config *RetryConfig, fn RetryFunc[T]) (T, error) {
	var zero T

	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	backoff := NewBackoff(config.InitialInterval, config.MaxInterval, config.Multiplier, config.Jitter)

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			}
			return zero, ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return zero, err
		}
		if config.RetryIf != nil && !config.RetryIf(err) {
			return zero, err
		}
		if attempt >= config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-time.After(backoff.Next()):
		}
	}

	return zero, &RetryError{
		Err:      lastErr,
		Attempts: config.MaxRetries + 1,
	}
}

// RetryVoid executes a function without a result under the retry policy
func RetryVoid(ctx context.Context, config *RetryConfig, fn func(ctx context.Context) error) error {
	_, err := RetryWithBackoff(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Backoff calculates exponential backoff with optional jitter
type Backoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
	current         time.Duration
	attempt         int
}

// NewBackoff creates a new backoff calculator
func NewBackoff(initial, max time.Duration, multiplier, jitter float64) *Backoff {
	return &Backoff{
		InitialInterval: initial,
		MaxInterval:     max,
		Multiplier:      multiplier,
		Jitter:          jitter,
	}
}

// Next returns the next backoff duration, never above MaxInterval
func (b *Backoff) Next() time.Duration {
	if b.attempt == 0 {
		b.current = b.InitialInterval
	} else {
		b.current = time.Duration(float64(b.current) * b.Multiplier)
	}
	if b.MaxInterval > 0 && b.current > b.MaxInterval {
		b.current = b.MaxInterval
	}
	b.attempt++

	wait := b.current
	if b.Jitter > 0 {
		wait += time.Duration(float64(wait) * b.Jitter * (rand.Float64()*2 - 1))
	}
	if b.MaxInterval > 0 && wait > b.MaxInterval {
		wait = b.MaxInterval
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Reset resets the backoff to initial state
func (b *Backoff) Reset() {
	b.attempt = 0
	b.current = 0
}

// Attempt returns the current attempt number
func (b *Backoff) Attempt() int {
	return b.attempt
}
