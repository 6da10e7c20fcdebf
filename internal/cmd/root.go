// Package cmd implements the tribunal command line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/tribunal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tribunal",
	Short: "Multi-model consultation engine",
	Long: `Tribunal runs a structured debate between several AI advisors to answer
hard questions: independent positions, a synthesis of agreement and tension,
cross-examination, and a final verdict with dissent on record.

Every consultation is cost-estimated up front and gated on your consent
before any provider is called.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/tribunal/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults first so they apply even without a config file.
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TRIBUNAL")
	// TRIBUNAL_CONSULT_MAX_ROUNDS maps to consult.max_rounds.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing config file is fine; defaults and env still apply.
	_ = viper.ReadInConfig()
}
