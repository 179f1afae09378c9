package cli

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "booking-api",
	Short:         "Demo booking engine for the NeuronIA clinic funnel",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	logger := newLogger()
	rootCmd.AddCommand(
		newServeCmd(logger),
		newMigrateCmd(logger),
		newSweepCmd(logger),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func splitCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
