package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/framescope/config"
)

var (
	configInput  string
	configOutput string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print or write the effective configuration.",
	Long: "`config` prints the configuration after the file, the .env file " +
		"and the environment are applied. `config --write <path>` saves it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configInput)
		if err != nil {
			return err
		}

		if configOutput != "" {
			return cfg.Save(configOutput)
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()

		return enc.Encode(cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().StringVar(&configInput, "config", "", "YAML configuration file")
	configCmd.Flags().StringVar(&configOutput, "write", "", "Write the configuration to a file")
}
