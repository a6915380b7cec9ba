package run

import (
	"github.com/Mmx233/fakechat/config"
	"github.com/Mmx233/fakechat/tools"
	"github.com/spf13/cobra"
)

var (
	configFile = tools.GetenvDefault(config.EnvPrefix+"CONFIG", "scenario.yaml")
	Cmd        = &cobra.Command{
		Use:   "run",
		Short: "Run a fakechat scenario",
		Args:  cobra.NoArgs,
	}
)

func init() {
	Cmd.PersistentFlags().StringVarP(&configFile, "config", "c", configFile, "path of scenario file")
	Cmd.AddCommand(scenarioCmd)
}
