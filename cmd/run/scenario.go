package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mmx233/fakechat/config"
	"github.com/Mmx233/fakechat/scenario"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	printJSON bool

	scenarioCmd = &cobra.Command{
		Use:   "scenario",
		Short: "Run the steps of a scenario file against a fake server",
		Args:  cobra.NoArgs,
		RunE:  runScenario,
	}
)

func init() {
	scenarioCmd.Flags().BoolVar(&printJSON, "json", false, "print the run report as JSON to stdout")
}

func runScenario(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "scenario-cmd").Logger()

	logger.Info().Str("config", configFile).Msg("loading scenario")
	sc, err := config.LoadScenario(configFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := scenario.NewRunner(log.Logger).Run(ctx, sc)

	if printJSON {
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}

	logger.Info().
		Int("steps", report.Steps).
		Int("alerts", len(report.Alerts)).
		Int("messages", len(report.Messages)).
		Int("sends", len(report.Sends)).
		Bool("interrupted", report.Interrupted).
		Msg("scenario finished")

	if runErr != nil {
		return fmt.Errorf("scenario %s: %w", sc.Name, runErr)
	}
	return nil
}
