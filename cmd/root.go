package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"adwise/src/log"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "adwise",
	Short: "Submit content for ad generation and distribute the result",
	Long: `adwise submits a document or text to the generation service, tracks the job
until it completes and distributes the generated artifact as posters, email,
social posts and messages.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("profile", "", "state profile to use")
	viper.BindPFlag("store.profile", rootCmd.PersistentFlags().Lookup("profile"))

	settingDefaultConfig()
}

func initConfig() error {
	// a missing .env is fine
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}

	return log.Configure(viper.GetString("log.level"), viper.GetBool("log.development"))
}
