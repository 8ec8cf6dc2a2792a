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

// Package main is the entry point for the storebind service.
//
// storebind loads a configuration of records, discovers module blueprints,
// binds each record to a named connection and serves an admin API until it
// receives SIGINT or SIGTERM, at which point every connection is closed.
//
// Usage:
//
//	storebind serve --config storebind.yaml
//	storebind validate --config storebind.yaml
//	storebind init > storebind.yaml
//
// Environment Variables:
//
//	STOREBIND_CONFIG - configuration file (default: storebind.yaml)
//	PORT - admin HTTP port (default: 8090)
//	STOREBIND_JWT_SECRET - enables bearer auth on admin write endpoints
//	STOREBIND_CORS_ORIGINS - comma separated allowed origins (default: *)
//	LOG_LEVEL - debug, info, warn or error (default: info)
package main
