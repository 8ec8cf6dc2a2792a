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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"storebind/api"
	"storebind/app"
	"storebind/binder"
	"storebind/connectors/config"
	"storebind/modules"
	"storebind/modules/builtin"
	"storebind/shared/logger"
)

var version = "1.0.0"

const (
	defaultConfigPath      = "storebind.yaml"
	defaultPort            = "8090"
	defaultShutdownTimeout = 15 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "storebind",
		Short:         "Named connection registry and module binder",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", envOr("STOREBIND_CONFIG", defaultConfigPath), "configuration file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(initCmd())
	return rootCmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// serveCmd starts the application and the admin API
func serveCmd() *cobra.Command {
	var (
		addr            string
		shutdownTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bind configured modules and serve the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return serve(configPath, addr, shutdownTimeout, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":"+envOr("PORT", defaultPort), "admin API listen address")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "time allowed for closing connections")
	return cmd
}

func serve(configPath, addr string, shutdownTimeout time.Duration, reg prometheus.Registerer, gatherer prometheus.Gatherer) error {
	log := logger.New("storebind")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(app.Options{
		Source:     config.NewFileSource(configPath),
		Logger:     log.Named("app"),
		Registerer: reg,
	})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	var origins []string
	if v := os.Getenv("STOREBIND_CORS_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}
	admin := api.NewServer(a, api.Options{
		JWTSecret:      []byte(os.Getenv("STOREBIND_JWT_SECRET")),
		AllowedOrigins: origins,
		Gatherer:       gatherer,
		Logger:         log.Named("api"),
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           admin.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Admin API listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Termination signal received", nil)
	case runErr = <-serverErr:
		log.ErrorWithErr("Admin API failed", runErr, nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr("Admin API shutdown failed", err, nil)
	}
	// Close failures are logged by the registry and do not change the exit code
	_ = a.Shutdown(shutdownCtx)
	log.Info("Shutdown complete", nil)
	if runErr != nil {
		return fmt.Errorf("admin api: %w", runErr)
	}
	return nil
}

// validateCmd loads the configuration and reports how records resolve
// without opening any connection.
func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and module definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.NewFileSource(configPath).Load(cmd.Context())
			if err != nil {
				return err
			}

			catalog := modules.NewCatalog()
			if !cfg.LibMode && cfg.ModulesPath != "" {
				catalog, err = modules.Discover(cmd.Context(), cfg.ModulesPath, builtin.NewTable(), logger.New("discovery"))
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "blueprints: %s\n", strings.Join(catalog.Names(), ", "))
			problems := 0
			for i := range cfg.Records {
				rec := &cfg.Records[i]
				_, found := catalog.Lookup(strings.ToLower(rec.BlueprintRef))
				status := "ok"
				switch err := rec.Validate(); {
				case err != nil:
					status = err.Error()
				case cfg.ConnectionURI(rec) == "":
					status = "no uri"
				case !found:
					status = fmt.Sprintf("blueprint %q not found", rec.BlueprintRef)
				}
				if status != "ok" {
					problems++
				}
				fmt.Fprintf(out, "%-20s %-30s %s\n", rec.Name, binder.ScopedName(cfg.ConnectionName(rec), rec.Entity), status)
			}
			if problems > 0 {
				return fmt.Errorf("%d record(s) would be skipped", problems)
			}
			return nil
		},
	}
}

// initCmd prints an example configuration
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Print an example configuration file",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateExampleConfigFile())
		},
	}
}
