package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/acmg-amp-rating/internal/config"
	"github.com/acmg-amp-rating/internal/domain"
	"github.com/acmg-amp-rating/internal/rating"
	"github.com/acmg-amp-rating/internal/service"
	"github.com/acmg-amp-rating/pkg/external"
)

// globals holds the persistent flags and what PersistentPreRunE derives from them.
type globals struct {
	dataDir    string
	backendURL string
	token      string
	format     string
	logLevel   string

	logger *logrus.Logger
}

// Execute runs acmgctl with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}
	lite := config.LoadLiteConfig()

	root := &cobra.Command{
		Use:           "acmgctl",
		Short:         "ACMG/AMP variant rating client",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.format != formatJSON && g.format != formatYAML {
				return domain.NewValidationError("format", "must be json or yaml", g.format)
			}
			g.logger = config.NewLogger(g.logLevel, "text")
			g.logger.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&g.dataDir, "data-dir", lite.DataDir, "data directory holding ratings.db")
	root.PersistentFlags().StringVar(&g.backendURL, "backend", "", "rating backend base URL (default: local store)")
	root.PersistentFlags().StringVar(&g.token, "token", "", "bearer token for the rating backend")
	root.PersistentFlags().StringVarP(&g.format, "format", "f", formatJSON, "output format: json or yaml")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		criteriaCmd(g),
		classifyCmd(g),
		ratingCmd(g),
		exportCmd(g),
		importCmd(g),
		setupCmd(g),
	)
	return root
}

// localStore opens the SQLite store in the data directory.
func (g *globals) localStore() (rating.Store, error) {
	cfg := &config.LiteConfig{DataDir: g.dataDir}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	return rating.NewSQLiteStore(cfg.RatingsDBPath())
}

// ratingService builds a service over the remote backend when --backend is set and the
// local store otherwise. The returned func releases the store.
func (g *globals) ratingService() (*service.RatingService, func(), error) {
	if g.backendURL != "" {
		client, err := external.NewRatingClient(domain.RatingBackendConfig{
			BaseURL: g.backendURL,
			Token:   g.token,
		}, g.logger)
		if err != nil {
			return nil, nil, err
		}
		return service.NewRatingService(g.logger, client), func() {}, nil
	}

	store, err := g.localStore()
	if err != nil {
		return nil, nil, err
	}
	return service.NewRatingService(g.logger, store), func() { store.Close() }, nil
}
