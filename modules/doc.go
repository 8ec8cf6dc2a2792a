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
Package modules defines data modules, the blueprints that build them and the
discovery pass that assembles a blueprint catalog from disk.

# Blueprints

Constructors are compiled in and registered in a ConstructorTable under an
identifier:

	table := modules.NewConstructorTable()
	builtin.Register(table) // document, keyvalue, table

A module definition file names a blueprint and picks its constructor:

	# models/user.module.yaml
	name: User
	blueprint: document
	options:
	  collection: users

# Discovery

	catalog, err := modules.Discover(ctx, "./models", table, log)

Discover walks the directory for *.module.yaml files in lexical order. A
file that fails to load, or names a constructor missing from the table, is
logged and skipped. When two files declare the same name (compared without
case) the later file wins and a warning names both.

Embedded hosts skip discovery and hand a Blueprint to each record directly
with NewBlueprint.
*/
package modules
