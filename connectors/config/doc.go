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
Package config loads the storebind application configuration.

The configuration names the records to bind. Each record pairs an entity
with a blueprint and a connection:

	version: "1.0"
	modules_path: ./models
	records:
	  - name: main
	    uri: mongodb://localhost:27017/app
	    entity: User
	    blueprint: user

With use_global_uri on, records ignore their own uri and share a single
connection named by global_connection_name (default "global").

# Sources

  - FileSource: YAML file, re-read on every Load, with ${VAR} and
    ${VAR:-default} expansion. A missing file returns ErrConfigNotFound.
  - StaticSource: configuration built in code for embedded (lib mode) hosts.
*/
package config
