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
Package app is the storebind composition root.

An App owns the connection registry and the module table. Start loads the
configuration, discovers blueprints and binds every record:

	a, err := app.New(app.Options{Source: config.NewFileSource("storebind.yaml")})
	if err != nil { ... }
	if err := a.Start(ctx); err != nil { ... } // configuration errors are fatal
	defer a.Shutdown(context.Background())

	users, ok := app.Lookup[*document.Module](a, "User")

Modules are registered under their entity name ("User") and under the
connection-scoped name ("main.User").

# Lifecycle

	Uninitialized -> LoadingConfig -> Binding -> Ready

Reload walks Ready -> LoadingConfig -> Binding -> Ready. Connections are
reused by name and keep their identity; every module instance is replaced.
If the configuration cannot be reloaded the current modules stay in place.

Shutdown closes every connection exactly once.
*/
package app
