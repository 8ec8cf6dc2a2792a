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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"storebind/app"
	"storebind/connectors/base"
	"storebind/connectors/registry"
	"storebind/shared/logger"
)

// DefaultHealthTimeout bounds the ping fan-out of GET /health
const DefaultHealthTimeout = 5 * time.Second

// Options configures the admin server
type Options struct {
	// JWTSecret enables bearer token checks on write endpoints when set
	JWTSecret []byte

	// AllowedOrigins for CORS; defaults to all origins
	AllowedOrigins []string

	// Gatherer backs /metrics; defaults to the global registry
	Gatherer prometheus.Gatherer

	Logger *logger.Logger
}

// Server serves the admin HTTP API for one application
type Server struct {
	app       *app.App
	router    *mux.Router
	handler   http.Handler
	jwtSecret []byte
	logger    *logger.Logger
}

// NewServer builds the router for a
func NewServer(a *app.App, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.New("api")
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		app:       a,
		router:    mux.NewRouter(),
		jwtSecret: opts.JWTSecret,
		logger:    log,
	}

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/api/connections", s.listConnectionsHandler).Methods("GET")
	s.router.Handle("/api/connections/{name}", s.requireAuth(http.HandlerFunc(s.closeConnectionHandler))).Methods("DELETE")
	s.router.HandleFunc("/api/modules", s.listModulesHandler).Methods("GET")
	s.router.Handle("/api/reload", s.requireAuth(http.HandlerFunc(s.reloadHandler))).Methods("POST")
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the CORS-wrapped router
func (s *Server) Handler() http.Handler { return s.handler }

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status      string                        `json:"status"`
	State       string                        `json:"state"`
	Modules     int                           `json:"modules"`
	Connections map[string]*base.HealthStatus `json:"connections"`
	Timestamp   time.Time                     `json:"timestamp"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), DefaultHealthTimeout)
	defer cancel()

	conns := s.app.Registry().HealthCheck(ctx)
	state := s.app.State()

	status := "healthy"
	for _, h := range conns {
		if !h.Healthy {
			status = "degraded"
			break
		}
	}
	code := http.StatusOK
	if state != app.StateReady {
		status = "starting"
		code = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, HealthResponse{
		Status:      status,
		State:       state.String(),
		Modules:     len(s.app.ModuleInfos()),
		Connections: conns,
		Timestamp:   time.Now().UTC(),
	}, code)
}

func (s *Server) listConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	details := false
	if v := r.URL.Query().Get("details"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, "details must be a boolean", http.StatusBadRequest)
			return
		}
		details = parsed
	}

	reg := s.app.Registry()
	if details {
		infos := reg.ConnectionDetails()
		if infos == nil {
			infos = []registry.ConnectionInfo{}
		}
		writeJSONResponse(w, map[string]interface{}{"connections": infos, "count": len(infos)}, http.StatusOK)
		return
	}
	names := reg.ConnectionNames()
	if names == nil {
		names = []string{}
	}
	writeJSONResponse(w, map[string]interface{}{"connections": names, "count": len(names)}, http.StatusOK)
}

func (s *Server) closeConnectionHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	reg := s.app.Registry()
	if _, ok := reg.GetConnection(name); !ok {
		writeJSONError(w, "connection not found: "+name, http.StatusNotFound)
		return
	}

	if err := reg.CloseConnection(r.Context(), name); err != nil {
		s.logger.ErrorWithErr("Close via API failed", err, map[string]interface{}{"connection": name})
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("Connection closed via API", map[string]interface{}{"connection": name})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listModulesHandler(w http.ResponseWriter, r *http.Request) {
	infos := s.app.ModuleInfos()
	writeJSONResponse(w, map[string]interface{}{
		"modules":    infos,
		"count":      len(infos),
		"blueprints": nonNil(s.app.Blueprints()),
	}, http.StatusOK)
}

func (s *Server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	err := s.app.Reload(r.Context())
	switch {
	case errors.Is(err, app.ErrNotReady), errors.Is(err, app.ErrShutdown):
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	report := s.app.LastReport()
	skipped := make([]map[string]string, 0, len(report.Skipped))
	for _, sk := range report.Skipped {
		skipped = append(skipped, map[string]string{
			"record":  sk.Record,
			"outcome": sk.Outcome,
			"reason":  sk.Reason,
		})
	}
	writeJSONResponse(w, map[string]interface{}{
		"status":  "reloaded",
		"bound":   len(report.Bound),
		"skipped": skipped,
	}, http.StatusOK)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// writeJSONResponse writes a JSON response with the given status code
func writeJSONResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    statusCode,
			"message": message,
		},
	}, statusCode)
}
