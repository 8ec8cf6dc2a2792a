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

package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// requireAuth rejects requests without a valid HS256 bearer token. It is a
// pass-through when no secret is configured.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.jwtSecret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || tokenString == authHeader {
			writeJSONError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		subject, err := s.validateToken(tokenString)
		if err != nil {
			s.logger.Warn("Rejected admin request", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			writeJSONError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		s.logger.Debug("Admin request authorized", map[string]interface{}{
			"path":    r.URL.Path,
			"subject": subject,
		})
		next.ServeHTTP(w, r)
	})
}

// validateToken parses tokenString and returns its subject claim
func (s *Server) validateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %v", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("invalid token claims: %w", err)
	}
	return sub, nil
}
