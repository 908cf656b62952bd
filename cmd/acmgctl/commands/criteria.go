package commands

import (
	"github.com/spf13/cobra"

	"github.com/acmg-amp-rating/internal/domain"
	"github.com/acmg-amp-rating/internal/service"
)

type catalog struct {
	Criteria []domain.Criterion         `json:"criteria" yaml:"criteria"`
	Rules    []service.RuleDescription `json:"rules" yaml:"rules"`
}

func criteriaCmd(g *globals) *cobra.Command {
	var withRules bool

	cmd := &cobra.Command{
		Use:   "criteria",
		Short: "Print the ACMG/AMP criteria catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := catalog{Criteria: domain.AllCriteria()}
			if withRules {
				out.Rules = service.CombiningRules()
			}
			return render(cmd.OutOrStdout(), g.format, out)
		},
	}
	cmd.Flags().BoolVar(&withRules, "rules", false, "include the combining rules")
	return cmd
}
