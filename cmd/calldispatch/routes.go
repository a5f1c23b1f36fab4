package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/calldispatch/dispatch"
	"github.com/jonwraymond/calldispatch/health"
	"github.com/jonwraymond/calldispatch/route"
)

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the calls of the route document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			doc, err := route.Load(cfg.Server.Routes)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "METHOD\tPATH\tHANDLER\tAUTH\tFLAGS")
			for _, c := range doc.Routes() {
				authName := c.Authentication
				if authName == "" {
					authName = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Method, c.Path, c.ID(), authName, flags(c))
			}
			return tw.Flush()
		},
	}
}

func flags(c route.Call) string {
	var f []string
	if c.Caching.Enabled {
		f = append(f, "cache")
		if !c.StoresResults() {
			f = append(f, "no-store")
		}
	}
	if c.RawResponse {
		f = append(f, "raw")
	}
	if len(f) == 0 {
		return "-"
	}
	return strings.Join(f, ",")
}

func newCheckCmd(register registerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the route document and report handlers this binary cannot resolve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			doc, err := route.Load(cfg.Server.Routes)
			if err != nil {
				return err
			}
			if err := cfg.CheckRoutes(doc.Routes()); err != nil {
				return err
			}

			reg := dispatch.NewRegistry()
			if err := register(reg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			unresolved := health.NewRoutesChecker(doc.Routes(), reg).Unresolved()
			for _, u := range unresolved {
				fmt.Fprintf(out, "unresolved: %s\n", u)
			}
			if len(unresolved) > 0 {
				return fmt.Errorf("%d unresolved handler(s)", len(unresolved))
			}
			fmt.Fprintf(out, "ok: %d routes\n", len(doc.Routes()))
			return nil
		},
	}
}
