package generate

import (
	"fmt"
	"os"

	"github.com/Mmx233/fakechat/examples"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// ScenarioCmd writes the embedded scenario template.
var ScenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Generate a scenario file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeTemplate(configFile)
	},
}

func writeTemplate(outputPath string) error {
	logger := log.With().Str("com", "generate").Logger()

	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("file already exists: %s", outputPath)
	}

	content, err := examples.ScenarioTemplate()
	if err != nil {
		return fmt.Errorf("load scenario template: %w", err)
	}

	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}

	logger.Info().Str("file", outputPath).Msg("generated scenario")
	return nil
}
