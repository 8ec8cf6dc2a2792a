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
Package api exposes the storebind admin HTTP surface.

Routes:

	GET    /health                   application state and per-connection health
	GET    /api/connections          connection names (?details=true for state, entities, redacted URI)
	DELETE /api/connections/{name}   close one connection
	GET    /api/modules              bound modules and discovered blueprints
	POST   /api/reload               reload configuration and rebind modules
	GET    /metrics                  Prometheus metrics

When a JWT secret is configured the DELETE and POST routes require an
HS256 bearer token.
*/
package api
