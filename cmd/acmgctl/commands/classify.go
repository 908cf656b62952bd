package commands

import (
	"github.com/spf13/cobra"

	"github.com/acmg-amp-rating/internal/service"
)

func classifyCmd(g *globals) *cobra.Command {
	var verdictOnly bool

	cmd := &cobra.Command{
		Use:   "classify FILE",
		Short: "Classify a rating record read from FILE (JSON or YAML, - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := readRecord(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			eval, err := service.NewRatingService(g.logger, nil).ClassifyRecord(record)
			if err != nil {
				return err
			}
			if verdictOnly {
				return render(cmd.OutOrStdout(), g.format, eval.Verdict)
			}
			return render(cmd.OutOrStdout(), g.format, eval)
		},
	}
	cmd.Flags().BoolVar(&verdictOnly, "verdict", false, "print only the verdict")
	return cmd
}
