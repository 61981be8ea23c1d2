package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/iattom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Print the configuration after defaults, the config file and environment
variables are applied. Credentials are masked. Settings that leave features
degraded are listed as warnings.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s\n", loader.GetConfigPath())
	fmt.Fprintln(out, cfg.String())

	warnings := config.NewValidator().ValidateConfig(cfg)
	if len(warnings) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Warnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %v\n", w)
		}
	}
	return nil
}
