package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acmg-amp-rating/internal/setup"
)

func setupCmd(g *globals) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the lite MCP server with a desktop MCP client",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if configPath != "" {
				return nil
			}
			path, err := setup.DefaultClientConfigPath()
			if err != nil {
				return err
			}
			configPath = path
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "client-config", "", "client config file (default: platform location)")

	var opts setup.Options
	register := &cobra.Command{
		Use:   "register",
		Short: "Add or replace the rating server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.DataDir == "" {
				opts.DataDir = g.dataDir
			}
			entry, err := setup.Register(configPath, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s) in %s\n", setup.ServerName, entry.Command, configPath)
			return nil
		},
	}
	register.Flags().StringVar(&opts.BinaryPath, "binary", "", "path to mcp-server-lite")
	register.Flags().StringVar(&opts.InterVarURL, "intervar-url", "", "InterVar prediction service URL")
	register.Flags().StringVar(&opts.AutoACMGURL, "autoacmg-url", "", "AutoACMG prediction service URL")
	register.Flags().StringVar(&opts.AutoPVS1URL, "autopvs1-url", "", "AutoPVS1 prediction service URL")

	unregister := &cobra.Command{
		Use:   "unregister",
		Short: "Remove the rating server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := setup.Unregister(configPath)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not registered\n", setup.ServerName)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", setup.ServerName, configPath)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the registration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := setup.GetStatus(configPath)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), g.format, st)
		},
	}

	cmd.AddCommand(register, unregister, status)
	return cmd
}
