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
Package sdk provides shared helpers for storebind connection drivers.

# Retry

RetryWithBackoff runs an operation with exponential backoff and jitter:

	err := sdk.RetryVoid(ctx, sdk.DialRetryConfig(3), func(ctx context.Context) error {
	    return transport.Dial(ctx)
	})

Errors are retried when RetryConfig.RetryIf returns true. The default
condition treats connection refusals, resets, timeouts and driver server
selection failures as transient. Wrap an error in NonRetryableError to stop
immediately. When all attempts fail a RetryError is returned.
*/
package sdk
