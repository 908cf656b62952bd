package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acmg-amp-rating/internal/domain"
	"github.com/acmg-amp-rating/internal/service"
)

type ratingView struct {
	Variant        string                `json:"variant" yaml:"variant"`
	Classification domain.Classification `json:"classification" yaml:"classification"`
	Rule           domain.CombiningRule  `json:"rule" yaml:"rule"`
	Significance   string                `json:"clinical_significance" yaml:"clinical_significance"`
	Record         *domain.RatingRecord  `json:"record" yaml:"record"`
}

func ratingCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rating",
		Short: "Get, store and delete variant ratings",
	}
	cmd.AddCommand(ratingGetCmd(g), ratingPutCmd(g), ratingDeleteCmd(g), ratingListCmd(g))
	return cmd
}

func ratingGetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get VARIANT",
		Short: "Print the stored rating of VARIANT with its verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := g.ratingService()
			if err != nil {
				return err
			}
			defer done()

			record, err := svc.GetRating(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			eval, err := svc.ClassifyRecord(record)
			if err != nil {
				return err
			}
			key, _ := domain.CanonicalVariant(args[0])
			return render(cmd.OutOrStdout(), g.format, ratingView{
				Variant:        key,
				Classification: eval.Verdict.Classification,
				Rule:           eval.Verdict.Rule,
				Significance:   eval.Verdict.Significance,
				Record:         record,
			})
		},
	}
}

func ratingPutCmd(g *globals) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "put VARIANT FILE",
		Short: "Store the rating record in FILE for VARIANT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := readRecord(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}

			svc, done, err := g.ratingService()
			if err != nil {
				return err
			}
			defer done()

			var eval *service.Evaluation
			switch mode {
			case "upsert":
				eval, err = svc.PutRating(cmd.Context(), args[0], record)
			case "create":
				eval, err = svc.CreateRating(cmd.Context(), args[0], record)
			case "update":
				eval, err = svc.UpdateRating(cmd.Context(), args[0], record)
			default:
				return domain.NewValidationError("mode", "must be create, update or upsert", mode)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n%s\n",
				eval.Variant, eval.Verdict.Classification, eval.Verdict.Rule, eval.Verdict.Significance)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "upsert", "create, update or upsert")
	return cmd
}

func ratingDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete VARIANT",
		Short: "Delete the stored rating of VARIANT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := g.ratingService()
			if err != nil {
				return err
			}
			defer done()

			if err := svc.DeleteRating(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func ratingListCmd(g *globals) *cobra.Command {
	var opts domain.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored ratings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := g.ratingService()
			if err != nil {
				return err
			}
			defer done()

			ratings, total, err := svc.ListRatings(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), g.format, map[string]interface{}{
				"total":   total,
				"ratings": ratings,
			})
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of ratings")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of ratings to skip")
	return cmd
}
