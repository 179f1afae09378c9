package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jmmolins87/NeuronIA-sub001/internal/app"
	"github.com/jmmolins87/NeuronIA-sub001/internal/clock"
	"github.com/jmmolins87/NeuronIA-sub001/internal/config"
	"github.com/jmmolins87/NeuronIA-sub001/internal/storage/postgres"
)

// The API sweeps lazily before every workflow, so this command is not needed
// for correctness. It exists for cron-style housekeeping on idle deployments.
func newSweepCmd(logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue holds once and exit",
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

			repo := postgres.NewBookingRepository(pool)
			n, err := app.NewSweeper(repo).Sweep(cmd.Context(), clock.NewSystem().Now())
			if err != nil {
				return err
			}
			logger.Info().Int("expired", n).Msg("sweep complete")
			return nil
		},
	}
}
