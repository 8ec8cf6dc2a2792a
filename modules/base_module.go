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

package modules

import (
	"storebind/connectors/base"
)

// BaseModule carries the fields every module shares. Blueprint
// implementations embed it.
type BaseModule struct {
	blueprint string
	entity    string
	handle    *base.Handle
	schema    Schema
}

// NewBaseModule creates the shared part of a module
func NewBaseModule(blueprint, entity string, h *base.Handle, schema Schema) BaseModule {
	if schema == nil {
		schema = Schema{}
	}
	return BaseModule{
		blueprint: blueprint,
		entity:    entity,
		handle:    h,
		schema:    schema,
	}
}

// Blueprint returns the name of the blueprint that built this module
func (m *BaseModule) Blueprint() string { return m.blueprint }

// Entity returns the bound entity name
func (m *BaseModule) Entity() string { return m.entity }

// Connection returns the handle the module is bound to
func (m *BaseModule) Connection() *base.Handle { return m.handle }

// Schema returns the entity schema
func (m *BaseModule) Schema() Schema { return m.schema }

// Transport returns the handle's transport asserted to T, or false if the
// handle uses a different driver.
func Transport[T base.Transport](h *base.Handle) (T, bool) {
	t, ok := h.Transport().(T)
	return t, ok
}
