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

// Package builtin registers the blueprint constructors that ship with
// storebind.
package builtin

import (
	"storebind/modules"
	"storebind/modules/document"
	"storebind/modules/keyvalue"
	"storebind/modules/table"
)

// Register adds the document, keyvalue and table constructors to t
func Register(t *modules.ConstructorTable) error {
	for id, ctor := range map[string]modules.Constructor{
		document.Kind: document.New,
		keyvalue.Kind: keyvalue.New,
		table.Kind:    table.New,
	} {
		if err := t.Register(id, ctor); err != nil {
			return err
		}
	}
	return nil
}

// NewTable returns a constructor table holding only the built-in constructors
func NewTable() *modules.ConstructorTable {
	t := modules.NewConstructorTable()
	if err := Register(t); err != nil {
		panic(err)
	}
	return t
}
