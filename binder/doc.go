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
Package binder binds configuration records to module instances.

For each record, in order, the binder:

 1. picks the connection name: the shared global name when use_global_uri
    is on, otherwise the record name
 2. picks the URI (global or per record); a record with neither is skipped
 3. gets or creates the named connection
 4. resolves the blueprint: the record's own in lib mode, otherwise a
    case-insensitive catalog lookup
 5. instantiates the module with the handle, entity and schema
 6. registers it under "<connection>.<entity>" and "<entity>" and records
    the entity on the handle

Failures at any step are logged, counted in storebind_binding_records_total
and listed in the Report. Bind never fails as a whole.
*/
package binder
