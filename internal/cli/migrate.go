package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jmmolins87/NeuronIA-sub001/internal/config"
	"github.com/jmmolins87/NeuronIA-sub001/migrations"
)

func newMigrateCmd(logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			pool, err := connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := migrations.Apply(cmd.Context(), pool); err != nil {
				return err
			}
			logger.Info().Msg("migrations applied")
			return nil
		},
	}
}
