package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func exportCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Export every rating in the local store to FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := g.localStore()
			if err != nil {
				return err
			}
			defer store.Close()

			file, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			defer file.Close()

			if err := store.ExportJSON(cmd.Context(), file); err != nil {
				return err
			}
			count, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d ratings to %s\n", count, args[0])
			return nil
		},
	}
}

func importCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import ratings from an export FILE into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer file.Close()

			store, err := g.localStore()
			if err != nil {
				return err
			}
			defer store.Close()

			imported, skipped, err := store.ImportJSON(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d ratings, skipped %d existing\n", imported, skipped)
			return nil
		},
	}
}
