package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change client settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := a.store.BackendURL(ctx)
			if err != nil {
				return err
			}
			theme, err := a.store.Theme(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend = %s\ntheme   = %s\n", backend, theme)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "set <backend|theme> <value>",
		Short:     "Change a setting",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"backend", "theme"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "backend":
				return a.store.SetBackendURL(cmd.Context(), args[1])
			case "theme":
				return a.store.SetTheme(cmd.Context(), args[1])
			default:
				return fmt.Errorf("unknown setting %q", args[0])
			}
		},
	})
	return cmd
}

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.api.Healthy(cmd.Context()) {
				return fmt.Errorf("backend %s is not reachable", a.api.BaseURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("✓ Backend healthy:"), a.api.BaseURL())
			return nil
		},
	}
}
