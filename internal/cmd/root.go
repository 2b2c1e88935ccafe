// Package cmd wires the taxaflow CLI: cobra commands over the run store,
// the pipeline engine, and the toolkit invocation layer.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taxaflow/taxaflow/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "taxaflow",
	Short: "Microbiome differential-abundance pipeline runner",
	Long: `Taxaflow drives a linear differential-abundance pipeline over an
external bioinformatics toolkit: import, filter, composition, balance
clustering, regression, and the taxonomy visualizations. Every run is
recorded in a manifest so it can be listed, inspected, and resumed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/taxaflow/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/taxaflow")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TAXAFLOW")
	// Replace dots with underscores for nested keys in env vars
	// e.g., TAXAFLOW_TOOLKIT_BINARY for toolkit.binary
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
