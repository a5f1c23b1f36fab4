// Command calldispatch serves a route document over HTTP.
//
// The binary resolves the built-in authentication libraries. Applications
// with their own handler libraries build a binary that passes a register
// function to newRootCmd.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/calldispatch/auth"
	"github.com/jonwraymond/calldispatch/dispatch"
	"github.com/jonwraymond/calldispatch/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// registerFunc adds handler libraries to a registry.
type registerFunc func(reg *dispatch.Registry) error

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(builtinLibraries).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func builtinLibraries(reg *dispatch.Registry) error {
	return auth.NewLibrary(nil).Register(reg)
}

func newRootCmd(register registerFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "calldispatch",
		Short:         "Declarative API dispatch server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	root.PersistentFlags().StringP("routes", "r", "", "Path to the route document (overrides server.routes)")

	root.AddCommand(newServeCmd(register))
	root.AddCommand(newRoutesCmd())
	root.AddCommand(newCheckCmd(register))
	return root
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if routes, _ := cmd.Flags().GetString("routes"); routes != "" {
		cfg.Server.Routes = routes
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			return nil, err
		}
		cfg.Server.Port = port
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.Observe.LogLevel = f.Value.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Server.Routes == "" {
		return nil, fmt.Errorf("%w: no route document (set server.routes or --routes)", config.ErrInvalid)
	}
	return cfg, nil
}
